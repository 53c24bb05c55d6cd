package jurisdiction

import (
	"fmt"
	"strings"
)

// Level identifies how broad an administrative scope is. Central covers the
// whole territory; each deeper level narrows to one more geographic field.
type Level int

const (
	Central  Level = 1
	City     Level = 2
	District Level = 3
	Ward     Level = 4
)

var levelLabels = map[Level]string{
	Central:  "central",
	City:     "city",
	District: "district",
	Ward:     "ward",
}

// Valid reports whether l is one of the four recognized levels.
func (l Level) Valid() bool {
	_, ok := levelLabels[l]
	return ok
}

// Label returns the lower-case level name used in claims and responses.
func (l Level) Label() string {
	if label, ok := levelLabels[l]; ok {
		return label
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// NarrowerThan reports whether l is strictly more specific than other.
// Level ordering is Central < City < District < Ward by specificity;
// comparisons go through these methods rather than raw ints so the
// ordering cannot be silently inverted at call sites.
func (l Level) NarrowerThan(other Level) bool {
	return int(l) > int(other)
}

// BroaderOrEqual reports whether l covers at least as much territory as other.
func (l Level) BroaderOrEqual(other Level) bool {
	return int(l) <= int(other)
}

// ParseLevel converts a label or numeric string into a Level.
func ParseLevel(raw string) (Level, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	for level, label := range levelLabels {
		if raw == label || raw == fmt.Sprintf("%d", int(level)) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown jurisdiction level %q", raw)
}
