// Package provider implements ports.MapProvider by recording provider-agnostic
// commands that browser clients replay against their vendor map SDK.
package provider

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/twpayne/go-polyline"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/ports"
)

// Stream records every provider call as a domain.Command.
type Stream struct {
	name    domain.Provider
	encode  bool
	mu      sync.Mutex
	channel domain.Channel
	pending []domain.Command
}

// Option configures a Stream.
type Option func(*Stream)

// WithEncodedPolylines sends polyline geometry in Google encoded form instead of point lists.
func WithEncodedPolylines() Option {
	return func(s *Stream) { s.encode = true }
}

// NewStream creates a command stream for the given provider.
func NewStream(name domain.Provider, opts ...Option) *Stream {
	s := &Stream{name: name}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ ports.MapProvider = (*Stream)(nil)

// Name returns the provider the commands are meant for.
func (s *Stream) Name() domain.Provider { return s.name }

// Begin tags subsequent commands with ch.
func (s *Stream) Begin(ch domain.Channel) {
	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()
}

func (s *Stream) record(cmd domain.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmd.Channel == "" {
		cmd.Channel = s.channel
	}
	s.pending = append(s.pending, cmd)
}

// Flush returns the recorded commands and starts a new batch.
func (s *Stream) Flush() []domain.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	if out == nil {
		out = []domain.Command{}
	}
	return out
}

func (s *Stream) DrawPolyline(ctx context.Context, entityID string, points []domain.Coordinate, color domain.Color, width int) (ports.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := uuid.NewString()
	cmd := domain.Command{Op: domain.OpDrawPolyline, EntityID: entityID, Handle: h, Color: color, Width: width}
	if s.encode {
		cmd.Encoded = string(encode(points))
	} else {
		cmd.Points = points
	}
	s.record(cmd)
	return h, nil
}

func (s *Stream) PlaceMarker(ctx context.Context, entityID string, point domain.Coordinate, role domain.MarkerRole) (ports.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := uuid.NewString()
	s.record(domain.Command{Op: domain.OpPlaceMarker, EntityID: entityID, Handle: h, Point: &point, Role: role})
	return h, nil
}

func (s *Stream) RemoveOverlaysFor(_ context.Context, entityID string, bundle ports.HandleBundle) error {
	var handles []string
	for _, h := range []ports.Handle{bundle.Polyline, bundle.StartMarker, bundle.EndMarker} {
		if id, ok := h.(string); ok && id != "" {
			handles = append(handles, id)
		}
	}
	s.record(domain.Command{Op: domain.OpRemoveOverlaysFor, EntityID: entityID, Handles: handles})
	return nil
}

func (s *Stream) FitBounds(_ context.Context, box domain.Bounds) error {
	s.record(domain.Command{Op: domain.OpFitBounds, Bounds: &box})
	return nil
}

func (s *Stream) CenterAt(_ context.Context, point domain.Coordinate) error {
	s.record(domain.Command{Op: domain.OpCenterAt, Point: &point})
	return nil
}

func (s *Stream) NoViewportChange(context.Context) error {
	s.record(domain.Command{Op: domain.OpNoViewportChange})
	return nil
}

func (s *Stream) ResetChannel(_ context.Context, ch domain.Channel) error {
	s.record(domain.Command{Op: domain.OpResetChannel, Channel: ch})
	return nil
}

func encode(points []domain.Coordinate) []byte {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lng}
	}
	return polyline.EncodeCoords(coords)
}
