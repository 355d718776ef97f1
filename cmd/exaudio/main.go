package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/exaudio/exaudio/internal/config"
	"github.com/exaudio/exaudio/internal/device"
	"github.com/exaudio/exaudio/internal/device/wasapi"
	"github.com/exaudio/exaudio/internal/format"
	"github.com/exaudio/exaudio/internal/infrastructure/db"
	"github.com/exaudio/exaudio/internal/logger"
	"github.com/exaudio/exaudio/internal/negotiate"
	"github.com/exaudio/exaudio/internal/playback"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	var (
		list     = flag.Bool("list", false, "List audio endpoints and exit")
		deviceID = flag.String("device", "", "Endpoint ID to negotiate formats for")
		capture  = flag.Bool("capture", false, "Treat the endpoint as a capture device")
		rates    = flag.String("rates", "", "Comma-separated sample rates to probe (overrides defaults)")
		channels = flag.String("channels", "", "Comma-separated channel counts to probe (overrides defaults)")
		refresh  = flag.Bool("refresh", false, "Ignore the cached result and re-probe the device")
		tone     = flag.Bool("tone", false, "Play a short verification tone before probing")
		verify   = flag.Bool("verify", false, "Open the first confirmed format exclusively and run one second of audio through it")
		logLevel = flag.String("log-level", "", "Log level (trace, debug, info, warn, error)")
		version  = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("exaudio %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg := config.Get()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Log.Level
	logConfig.File = cfg.Log.File
	if cfg.Log.FilePath != "" {
		logConfig.FilePath = cfg.Log.FilePath
	}
	if *logLevel != "" {
		logConfig.Level = *logLevel
	}
	logger.Initialize(logConfig)
	defer logger.Get().Close()

	logger.Info("exaudio starting",
		logger.String("version", Version),
		logger.String("build_time", BuildTime),
	)

	if *rates != "" {
		parsed, err := parseIntList(*rates)
		if err != nil {
			logger.Fatal("Invalid -rates value", logger.Error(err))
		}
		cfg.Set("negotiation.rates", parsed)
	}
	if *channels != "" {
		parsed, err := parseIntList(*channels)
		if err != nil {
			logger.Fatal("Invalid -channels value", logger.Error(err))
		}
		cfg.Set("negotiation.channels", parsed)
	}

	if *tone {
		if err := playback.Tone(44100, 2, 440, time.Second); err != nil {
			logger.ErrorLog("Verification tone failed", logger.Error(err))
		}
	}

	backend, err := wasapi.NewBackend()
	if err != nil {
		logger.Fatal("Failed to open audio backend", logger.Error(err))
	}

	if *list {
		listDevices(backend)
		return
	}

	if *deviceID == "" {
		flag.Usage()
		os.Exit(2)
	}

	direction := device.Render
	if *capture {
		direction = device.Capture
	}
	if err := run(backend, cfg, *deviceID, direction, *refresh, *verify); err != nil {
		logger.Fatal("Negotiation failed", logger.Error(err))
	}
}

func listDevices(backend *wasapi.Backend) {
	infos, err := backend.Devices()
	if err != nil {
		logger.Fatal("Failed to enumerate endpoints", logger.Error(err))
	}
	if len(infos) == 0 {
		fmt.Println("no active audio endpoints")
		return
	}
	for _, info := range infos {
		fmt.Println(info)
	}
}

func run(backend *wasapi.Backend, cfg *config.Config, id string, direction device.Direction, refresh, verify bool) error {
	info, err := backend.Device(id)
	if err != nil {
		return err
	}
	if info.Direction != direction {
		return fmt.Errorf("%w: %s is a %s device", device.ErrWrongDirection, info.Name, info.Direction)
	}

	var repo *db.FormatRepository
	if cfg.Cache.Enabled {
		dbConfig := db.DefaultConfig()
		if cfg.Cache.Path != "" {
			dbConfig.Path = cfg.Cache.Path
		}
		if err := db.Initialize(dbConfig); err != nil {
			return err
		}
		defer db.Get().Close()
		repo = db.NewFormatRepository(db.Get())
	}

	if repo != nil && !refresh {
		table, found, err := repo.Load(info.Name, direction)
		if err != nil {
			logger.Warn("Cache lookup failed, probing instead", logger.Error(err))
		} else if found {
			logger.Info("Using cached format table", logger.String("device", info.Name))
			printTable(info, table)
			if verify {
				return verifyLine(backend, id, direction, table)
			}
			return nil
		}
	}

	probe, err := backend.NewProbe(id)
	if err != nil {
		return err
	}
	defer probe.Release()

	started := time.Now()
	table := negotiate.Negotiate(context.Background(), probe,
		cfg.Rates(), cfg.Channels(), cfg.LimitPolicy())
	logger.Info("Probe run complete",
		logger.String("device", info.Name),
		logger.Duration("took", time.Since(started)))

	if repo != nil && !table.Empty() {
		if err := repo.Save(info.Name, direction, table); err != nil {
			logger.Warn("Failed to cache format table", logger.Error(err))
		}
	}

	printTable(info, table)
	if verify {
		return verifyLine(backend, id, direction, table)
	}
	return nil
}

// verifyLine opens the first 16-bit confirmed format exclusively and runs
// one second of audio through it, proving the negotiation result is
// actually usable and not just accepted by IsFormatSupported.
func verifyLine(backend *wasapi.Backend, id string, direction device.Direction, table *format.Table) error {
	var desc format.Descriptor
	found := false
	for _, d := range table.Descriptors() {
		if d.ValidBits == 16 && d.StoreBits == 16 {
			desc = d
			found = true
			break
		}
	}
	if !found {
		logger.Warn("No 16-bit format confirmed, skipping line verification")
		return nil
	}

	bytesPerSecond := desc.Rate * desc.FrameBytes()
	bufferBytes := bytesPerSecond / 2

	if direction == device.Capture {
		line, err := backend.OpenCapture(id, desc, bufferBytes)
		if err != nil {
			return err
		}
		defer line.Close()
		line.Start()
		buf := make([]byte, bytesPerSecond)
		n, err := line.Read(buf)
		if err != nil {
			return err
		}
		logger.Info("Captured through exclusive line",
			logger.String("descriptor", desc.String()),
			logger.Int("bytes", n))
		return nil
	}

	line, err := backend.OpenRender(id, desc, bufferBytes)
	if err != nil {
		return err
	}
	defer line.Close()
	line.Start()
	src := playback.NewSine(desc.Rate, desc.Channels, 440)
	if _, err := io.CopyN(line, src, int64(bytesPerSecond)); err != nil {
		return err
	}
	line.Drain()
	logger.Info("Played through exclusive line",
		logger.String("descriptor", desc.String()))
	return nil
}

func printTable(info device.Info, table *format.Table) {
	if table.Empty() {
		fmt.Printf("%s: no exclusive-mode formats confirmed\n", info.Name)
		return
	}
	fmt.Printf("%s: %d exclusive-mode formats\n", info.Name, table.Len())
	for _, d := range table.Descriptors() {
		fmt.Printf("  %s\n", d)
	}
	fmt.Println("line formats:")
	for _, lf := range format.LineFormats(table) {
		fmt.Printf("  bits=%s frame=%s channels=%s rate=%s\n",
			dim(lf.ValidBits), dim(lf.FrameBytes), dim(lf.Channels), dim(lf.Rate))
	}
}

// dim renders a line-format dimension, wildcards as "*".
func dim(v int) string {
	if v == format.NotSpecified {
		return "*"
	}
	return strconv.Itoa(v)
}

func parseIntList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}
