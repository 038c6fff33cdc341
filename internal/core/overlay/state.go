package overlay

import (
	"slices"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/palette"
	"github.com/samirrijal/routemap/internal/core/ports"
)

type drawn struct {
	bundle ports.HandleBundle
	points []domain.Coordinate
	color  domain.Color
}

// HandleTable maps entity ids to the provider handles drawn for them.
type HandleTable struct {
	entries map[string]drawn
}

func newHandleTable() *HandleTable {
	return &HandleTable{entries: make(map[string]drawn)}
}

// Get returns the bundle held for id.
func (t *HandleTable) Get(id string) (ports.HandleBundle, bool) {
	d, ok := t.entries[id]
	return d.bundle, ok
}

func (t *HandleTable) put(id string, d drawn) { t.entries[id] = d }

// take removes and returns the bundle for id.
func (t *HandleTable) take(id string) (ports.HandleBundle, bool) {
	d, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return d.bundle, ok
}

// IDs returns every id holding handles, sorted.
func (t *HandleTable) IDs() []string {
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len is the number of drawn entities.
func (t *HandleTable) Len() int { return len(t.entries) }

// ChannelState is the reconciliation state of one channel. It is created on the
// first reconciliation of the channel and is never shared between goroutines.
type ChannelState struct {
	channel  domain.Channel
	previous []string
	handles  *HandleTable
	colors   *palette.Assigner
}

func newChannelState(ch domain.Channel, p palette.Palette) *ChannelState {
	return &ChannelState{
		channel: ch,
		handles: newHandleTable(),
		colors:  palette.NewAssigner(p),
	}
}

// Previous returns the target ids of the last reconciliation, in order.
func (s *ChannelState) Previous() []string { return slices.Clone(s.previous) }

// Handles exposes the handle table.
func (s *ChannelState) Handles() *HandleTable { return s.handles }

// Colors exposes the channel's color assigner.
func (s *ChannelState) Colors() *palette.Assigner { return s.colors }

func (s *ChannelState) reset() {
	s.previous = nil
	s.handles = newHandleTable()
	s.colors.Reset()
}
