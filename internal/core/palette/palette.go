// Package palette assigns stable per-entity colors from a fixed ordered palette.
package palette

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/samirrijal/routemap/internal/core/domain"
)

// Palette is an ordered, read-only list of distinct colors.
type Palette []domain.Color

// defaultColors is used unless overlay.palette is configured. Never handed out directly.
var defaultColors = Palette{
	"#FF0000", "#0000FF", "#008000", "#FFA500", "#800080",
	"#00CED1", "#FF1493", "#8B4513", "#2F4F4F", "#DAA520",
}

// Default returns a copy of the built-in palette.
func Default() Palette { return slices.Clone(defaultColors) }

var hexColor = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

// New validates a configured palette.
func New(colors []string) (Palette, error) {
	if len(colors) == 0 {
		return Default(), nil
	}
	seen := make(map[string]bool, len(colors))
	p := make(Palette, 0, len(colors))
	for _, c := range colors {
		if !hexColor.MatchString(c) {
			return nil, fmt.Errorf("palette: %q is not a hex color", c)
		}
		if seen[c] {
			return nil, fmt.Errorf("palette: duplicate color %q", c)
		}
		seen[c] = true
		p = append(p, domain.Color(c))
	}
	return p, nil
}

// At returns the color for position i, wrapping around.
func (p Palette) At(i int) domain.Color {
	if len(p) == 0 {
		return defaultColors.At(i)
	}
	return p[i%len(p)]
}

// Assigner hands out palette colors by entity id. An id keeps its color until Reset,
// including after the entity is removed and re-selected. Not safe for concurrent use.
type Assigner struct {
	palette  Palette
	assigned int
	colors   map[string]domain.Color
}

// NewAssigner creates an assigner over p (Default when empty).
func NewAssigner(p Palette) *Assigner {
	if len(p) == 0 {
		p = defaultColors
	}
	return &Assigner{palette: p, colors: make(map[string]domain.Color)}
}

// Assign returns the id's color, allocating the next palette slot on first use.
func (a *Assigner) Assign(id string) domain.Color {
	if c, ok := a.colors[id]; ok {
		return c
	}
	c := a.palette.At(a.assigned)
	a.assigned++
	a.colors[id] = c
	return c
}

// Lookup returns the color already held by id.
func (a *Assigner) Lookup(id string) (domain.Color, bool) {
	c, ok := a.colors[id]
	return c, ok
}

// Pin forces a color for id without advancing the counter.
func (a *Assigner) Pin(id string, c domain.Color) {
	a.colors[id] = c
}

// Reset forgets every assignment and restarts at palette[0].
func (a *Assigner) Reset() {
	a.assigned = 0
	clear(a.colors)
}

// Len is the number of ids holding a color.
func (a *Assigner) Len() int { return len(a.colors) }

// Colors returns a copy of the current assignments.
func (a *Assigner) Colors() map[string]domain.Color {
	out := make(map[string]domain.Color, len(a.colors))
	for k, v := range a.colors {
		out[k] = v
	}
	return out
}
