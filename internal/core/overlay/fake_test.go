package overlay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/ports"
)

// fakeProvider records calls and hands out sequential handle names.
type fakeProvider struct {
	name    domain.Provider
	calls   []string
	live    map[string]bool
	next    int
	failOn  map[string]error // "<op>:<entity>"
	fits    []domain.Bounds
	centers []domain.Coordinate
	resets  []domain.Channel
}

func newFakeProvider(name domain.Provider) *fakeProvider {
	return &fakeProvider{name: name, live: map[string]bool{}, failOn: map[string]error{}}
}

var errBoom = errors.New("boom")

func (f *fakeProvider) handle(kind, id string) ports.Handle {
	f.next++
	h := fmt.Sprintf("%s-%s-%d", kind, id, f.next)
	f.live[h] = true
	return h
}

func (f *fakeProvider) Name() domain.Provider { return f.name }

func (f *fakeProvider) DrawPolyline(_ context.Context, id string, _ []domain.Coordinate, color domain.Color, _ int) (ports.Handle, error) {
	f.calls = append(f.calls, "draw:"+id+":"+string(color))
	if err := f.failOn["draw:"+id]; err != nil {
		return nil, err
	}
	return f.handle("line", id), nil
}

func (f *fakeProvider) PlaceMarker(_ context.Context, id string, _ domain.Coordinate, role domain.MarkerRole) (ports.Handle, error) {
	f.calls = append(f.calls, "marker:"+id+":"+string(role))
	if err := f.failOn["marker:"+id+":"+string(role)]; err != nil {
		return nil, err
	}
	return f.handle(string(role), id), nil
}

func (f *fakeProvider) RemoveOverlaysFor(_ context.Context, id string, b ports.HandleBundle) error {
	f.calls = append(f.calls, "remove:"+id)
	for _, h := range []ports.Handle{b.Polyline, b.StartMarker, b.EndMarker} {
		if s, ok := h.(string); ok {
			delete(f.live, s)
		}
	}
	return f.failOn["remove:"+id]
}

func (f *fakeProvider) FitBounds(_ context.Context, box domain.Bounds) error {
	f.fits = append(f.fits, box)
	return nil
}

func (f *fakeProvider) CenterAt(_ context.Context, p domain.Coordinate) error {
	f.centers = append(f.centers, p)
	return nil
}

func (f *fakeProvider) NoViewportChange(context.Context) error { return nil }

func (f *fakeProvider) ResetChannel(_ context.Context, ch domain.Channel) error {
	f.resets = append(f.resets, ch)
	return nil
}

func (f *fakeProvider) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
