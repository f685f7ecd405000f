package props

// Entry is one field/value pair inside a profile.
type Entry struct {
	Field Field `json:"field" yaml:"field"`
	Value Value `json:"value" yaml:"value"`
}

// Profile is a named, ordered and immutable set of field overrides.
// The zero value is an empty profile.
type Profile struct {
	name    string
	entries []Entry
}

// NewProfile copies entries into a new profile. A later entry for a field
// that already appeared replaces the earlier value but keeps its position.
func NewProfile(name string, entries ...Entry) Profile {
	p := Profile{name: name, entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		if i := p.index(e.Field); i >= 0 {
			p.entries[i].Value = e.Value
			continue
		}
		p.entries = append(p.entries, e)
	}
	return p
}

func (p Profile) Name() string {
	return p.name
}

// Entries returns a copy of the profile entries in order.
func (p Profile) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Fields returns the overridden fields in order.
func (p Profile) Fields() []Field {
	out := make([]Field, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.Field)
	}
	return out
}

// Get returns the value for a field and whether the profile sets it.
func (p Profile) Get(f Field) (Value, bool) {
	if i := p.index(f); i >= 0 {
		return p.entries[i].Value, true
	}
	return Value{}, false
}

func (p Profile) Len() int {
	return len(p.entries)
}

func (p Profile) IsEmpty() bool {
	return len(p.entries) == 0
}

func (p Profile) index(f Field) int {
	for i, e := range p.entries {
		if e.Field == f {
			return i
		}
	}
	return -1
}
