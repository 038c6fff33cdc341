package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Channel is a logical overlay group reconciled independently.
type Channel string

const (
	ChannelRoute Channel = "route"
	ChannelSpace Channel = "space"
)

// Channels lists every channel in reconciliation order.
var Channels = []Channel{ChannelRoute, ChannelSpace}

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelRoute:
		return ChannelRoute, nil
	case ChannelSpace:
		return ChannelSpace, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
}

// Provider identifies the third-party map SDK drawing a surface.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderHere   Provider = "here"
	ProviderBaidu  Provider = "baidu"
	ProviderTMap   Provider = "tmap"
	ProviderRouto  Provider = "routo"
	ProviderTomTom Provider = "tomtom"
)

// Providers lists every supported map provider.
var Providers = []Provider{
	ProviderGoogle, ProviderHere, ProviderBaidu, ProviderTMap, ProviderRouto, ProviderTomTom,
}

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// Color is a CSS color value, e.g. "#FF0000".
type Color string

// MarkerRole distinguishes the two markers placed on every overlay.
type MarkerRole string

const (
	MarkerStart MarkerRole = "start"
	MarkerEnd   MarkerRole = "end"
)

// Entity is one selectable route or area.
// An entity with no points is valid but not yet drawable.
type Entity struct {
	ID      string       `json:"id"`
	Channel Channel      `json:"channel"`
	Points  []Coordinate `json:"points"`
}

// Drawable reports whether the entity has at least one point.
func (e Entity) Drawable() bool { return len(e.Points) > 0 }

// SelectionItem is one user-checked search result: {file_id, ...metadata}.
type SelectionItem struct {
	FileID   string         `json:"file_id"`
	Metadata map[string]any `json:"-"`
}

// UnmarshalJSON keeps every field other than file_id as metadata.
func (s *SelectionItem) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, ok := raw["file_id"]
	if !ok {
		return fmt.Errorf("selection item: missing file_id")
	}
	switch v := id.(type) {
	case string:
		s.FileID = v
	case float64:
		s.FileID = fmt.Sprintf("%.0f", v)
	default:
		return fmt.Errorf("selection item: file_id must be a string, got %T", id)
	}
	delete(raw, "file_id")
	if len(raw) > 0 {
		s.Metadata = raw
	}
	return nil
}

// MarshalJSON writes metadata back next to file_id.
func (s SelectionItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Metadata)+1)
	for k, v := range s.Metadata {
		out[k] = v
	}
	out["file_id"] = s.FileID
	return json.Marshal(out)
}
