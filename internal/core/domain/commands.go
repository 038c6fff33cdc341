package domain

import "time"

// CommandOp is the name of one MapProvider call as replayed by a browser client.
type CommandOp string

const (
	OpDrawPolyline      CommandOp = "drawPolyline"
	OpPlaceMarker       CommandOp = "placeMarker"
	OpRemoveOverlaysFor CommandOp = "removeOverlaysFor"
	OpFitBounds         CommandOp = "fitBounds"
	OpCenterAt          CommandOp = "centerAt"
	OpNoViewportChange  CommandOp = "noViewportChange"
	OpResetChannel      CommandOp = "resetChannel"
)

// Command is one recorded provider call. Handle ids are opaque to the engine;
// clients map them to their vendor SDK objects.
type Command struct {
	Op       CommandOp    `json:"op"`
	Channel  Channel      `json:"channel,omitempty"`
	EntityID string       `json:"entity_id,omitempty"`
	Handle   string       `json:"handle,omitempty"`
	Handles  []string     `json:"handles,omitempty"`
	Points   []Coordinate `json:"points,omitempty"`
	Encoded  string       `json:"encoded,omitempty"`
	Color    Color        `json:"color,omitempty"`
	Width    int          `json:"width,omitempty"`
	Point    *Coordinate  `json:"point,omitempty"`
	Role     MarkerRole   `json:"role,omitempty"`
	Bounds   *Bounds      `json:"bounds,omitempty"`
}

// CommandBatch is everything one reconciliation asked the provider to do.
type CommandBatch struct {
	SurfaceID  string    `json:"surface_id"`
	Provider   Provider  `json:"provider"`
	Channel    Channel   `json:"channel,omitempty"`
	Generation uint64    `json:"generation"`
	Commands   []Command `json:"commands"`
	EmittedAt  time.Time `json:"emitted_at"`
}

// SelectionEvent is a selection change delivered over the message broker.
type SelectionEvent struct {
	SurfaceID string          `json:"surface_id"`
	Channel   Channel         `json:"channel"`
	Items     []SelectionItem `json:"items"`
}
