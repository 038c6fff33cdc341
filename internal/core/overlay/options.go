package overlay

import (
	"log/slog"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/palette"
)

// Policy selects how a channel is redrawn.
type Policy string

const (
	// PolicyStableDiff removes only deselected ids and draws only new ones.
	// Colors follow the id.
	PolicyStableDiff Policy = "stable_diff"
	// PolicyFullRedraw clears and redraws every call, coloring by list position.
	PolicyFullRedraw Policy = "full_redraw"
)

// ViewportMode selects the camera instruction for a non-empty selection.
type ViewportMode string

const (
	ViewportFit    ViewportMode = "fit"
	ViewportCenter ViewportMode = "center"
)

// EmptyViewport selects the camera instruction when nothing is selected.
type EmptyViewport string

const (
	EmptyViewportNone          EmptyViewport = "none"
	EmptyViewportDefaultCenter EmptyViewport = "default_center"
)

// Options configures a Reconciler.
type Options struct {
	Policy        Policy
	Palette       palette.Palette
	LineWidth     int
	MinFitRadiusM float64
	EmptyViewport EmptyViewport
	DefaultCenter domain.Coordinate
	// Viewport is the fallback mode; ProviderViewports overrides it per provider.
	Viewport          ViewportMode
	ProviderViewports map[domain.Provider]ViewportMode
	Logger            *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Policy == "" {
		o.Policy = PolicyStableDiff
	}
	if len(o.Palette) == 0 {
		o.Palette = palette.Default()
	}
	if o.LineWidth <= 0 {
		o.LineWidth = 4
	}
	if o.EmptyViewport == "" {
		o.EmptyViewport = EmptyViewportNone
	}
	if o.Viewport == "" {
		o.Viewport = ViewportFit
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) viewportFor(p domain.Provider) ViewportMode {
	if m, ok := o.ProviderViewports[p]; ok && m != "" {
		return m
	}
	return o.Viewport
}
