package models

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var DefaultClassNames = []string{"FireExtinguisher", "ToolBox", "OxygenTank"}

// ClassTable maps model class indices to display names. Indices outside the
// table are never an error: they resolve to an "unknown(i)" label.
type ClassTable struct {
	names []string
}

func NewClassTable(names []string) (ClassTable, error) {
	if len(names) == 0 {
		return ClassTable{}, errors.New("class table is empty")
	}

	seen := make(map[string]int, len(names))
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			return ClassTable{}, errors.Errorf("class %d has a blank name", i)
		}
		if j, ok := seen[n]; ok {
			return ClassTable{}, errors.Errorf("class name %q used by both %d and %d", n, j, i)
		}
		seen[n] = i
	}

	return ClassTable{names: append([]string(nil), names...)}, nil
}

func (t ClassTable) Len() int { return len(t.names) }

func (t ClassTable) Names() []string {
	return append([]string(nil), t.names...)
}

// Name returns the class name for index i and whether i is inside the table.
func (t ClassTable) Name(i int) (string, bool) {
	if i < 0 || i >= len(t.names) {
		return "", false
	}
	return t.names[i], true
}

// Label is Name with the unknown fallback applied.
func (t ClassTable) Label(i int) string {
	if n, ok := t.Name(i); ok {
		return n
	}
	return UnknownLabel(i)
}

func UnknownLabel(i int) string {
	return fmt.Sprintf("unknown(%d)", i)
}
