package format

// Table is the outcome of one negotiation run: the set of descriptors the
// device confirmed, in the order they were confirmed. Set semantics are
// keyed on the whole descriptor tuple, so two probes that happened to
// confirm identical descriptors (duplicate masks in the catalog, say)
// collapse into one entry.
type Table struct {
	descriptors []Descriptor
	seen        map[Descriptor]struct{}
}

func NewTable() *Table {
	return &Table{seen: make(map[Descriptor]struct{})}
}

// Add inserts the descriptor unless a structurally equal one is already
// present. It reports whether the table grew.
func (t *Table) Add(d Descriptor) bool {
	if _, ok := t.seen[d]; ok {
		return false
	}
	t.seen[d] = struct{}{}
	t.descriptors = append(t.descriptors, d)
	return true
}

// Contains reports whether a structurally equal descriptor is present.
func (t *Table) Contains(d Descriptor) bool {
	_, ok := t.seen[d]
	return ok
}

// Descriptors returns the confirmed descriptors in insertion order. The
// returned slice is a copy; the table itself stays immutable to callers.
func (t *Table) Descriptors() []Descriptor {
	out := make([]Descriptor, len(t.descriptors))
	copy(out, t.descriptors)
	return out
}

func (t *Table) Len() int {
	return len(t.descriptors)
}

// Empty reports whether the run confirmed nothing. An empty table is a
// valid outcome, not an error: it means the device rejected every
// candidate and the caller decides what to do about it.
func (t *Table) Empty() bool {
	return len(t.descriptors) == 0
}
