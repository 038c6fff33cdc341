package ports

import (
	"context"

	"github.com/samirrijal/routemap/internal/core/domain"
)

// Handle is an opaque reference to an object drawn by a map provider.
type Handle any

// HandleBundle is everything drawn for one entity.
type HandleBundle struct {
	Polyline    Handle
	StartMarker Handle
	EndMarker   Handle
}

// Empty reports whether the bundle holds no handles.
func (b HandleBundle) Empty() bool {
	return b.Polyline == nil && b.StartMarker == nil && b.EndMarker == nil
}

// MapProvider is the abstract rendering surface a vendor SDK adapter implements.
// Removing overlays that are already gone must succeed.
type MapProvider interface {
	Name() domain.Provider
	DrawPolyline(ctx context.Context, entityID string, points []domain.Coordinate, color domain.Color, width int) (Handle, error)
	PlaceMarker(ctx context.Context, entityID string, point domain.Coordinate, role domain.MarkerRole) (Handle, error)
	RemoveOverlaysFor(ctx context.Context, entityID string, bundle HandleBundle) error
	FitBounds(ctx context.Context, box domain.Bounds) error
	CenterAt(ctx context.Context, point domain.Coordinate) error
	NoViewportChange(ctx context.Context) error
	ResetChannel(ctx context.Context, channel domain.Channel) error
}

// CommandRecorder is a MapProvider whose calls are collected and replayed by
// remote clients instead of being executed in process.
type CommandRecorder interface {
	MapProvider
	Begin(channel domain.Channel)
	Flush() []domain.Command
}
