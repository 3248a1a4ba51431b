package startup

import "strings"

// Sectors is the ordered sector list of a startup. On the wire and in storage
// it travels as one string delimited by commas or semicolons.
type Sectors []string

func ParseSectors(raw string) Sectors {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })

	out := make(Sectors, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s Sectors) String() string {
	return strings.Join(s, ", ")
}

// List never returns nil so JSON gets [] rather than null.
func (s Sectors) List() []string {
	if s == nil {
		return []string{}
	}
	return []string(s)
}

// ContainsFold matches q as a case-insensitive substring of any sector.
func (s Sectors) ContainsFold(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, sec := range s {
		if strings.Contains(strings.ToLower(sec), q) {
			return true
		}
	}
	return false
}
