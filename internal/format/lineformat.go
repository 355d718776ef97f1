package format

// NotSpecified marks a line-format dimension the caller may choose freely.
const NotSpecified = -1

// LineFormat is the caller-facing description of one usable line
// configuration, shaped the way audio frameworks advertise formats: valid
// bits, frame size, channel count and rate, with NotSpecified wildcards.
type LineFormat struct {
	ValidBits  int
	FrameBytes int
	Channels   int
	Rate       int
}

// LineFormats translates a confirmed table into the advertised format
// list. Each distinct (rate, channels, validBits, storeBits) combination
// becomes one concrete entry regardless of how many mask/variant probes
// confirmed it. Every distinct valid-bits value additionally yields one
// wildcard entry, because only the predefined rate and channel lists were
// probed and other values of those dimensions may well work too.
func LineFormats(t *Table) []LineFormat {
	var out []LineFormat
	seen := make(map[LineFormat]struct{})
	validBits := make(map[int]struct{})
	var validOrder []int

	for _, d := range t.Descriptors() {
		lf := LineFormat{
			ValidBits:  d.ValidBits,
			FrameBytes: d.FrameBytes(),
			Channels:   d.Channels,
			Rate:       d.Rate,
		}
		if _, ok := seen[lf]; ok {
			continue
		}
		seen[lf] = struct{}{}
		out = append(out, lf)
		if _, ok := validBits[d.ValidBits]; !ok {
			validBits[d.ValidBits] = struct{}{}
			validOrder = append(validOrder, d.ValidBits)
		}
	}

	for _, bits := range validOrder {
		out = append(out, LineFormat{
			ValidBits:  bits,
			FrameBytes: NotSpecified,
			Channels:   NotSpecified,
			Rate:       NotSpecified,
		})
	}
	return out
}
