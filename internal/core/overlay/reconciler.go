// Package overlay reconciles selected entities into provider overlays and a viewport.
package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/ports"
	"github.com/samirrijal/routemap/internal/pkg/geospatial"
)

// Reconciler owns the overlays of one rendering surface. It is not safe for
// concurrent use; callers serialize every call per surface.
type Reconciler struct {
	provider ports.MapProvider
	opts     Options
	states   map[domain.Channel]*ChannelState
	log      *slog.Logger
}

// channelScoped is implemented by providers that tag their output with the channel
// being reconciled.
type channelScoped interface {
	Begin(ch domain.Channel)
}

func (r *Reconciler) begin(ch domain.Channel) {
	if cs, ok := r.provider.(channelScoped); ok {
		cs.Begin(ch)
	}
}

// NewReconciler binds a reconciler to a provider.
func NewReconciler(provider ports.MapProvider, opts Options) *Reconciler {
	opts = opts.withDefaults()
	return &Reconciler{
		provider: provider,
		opts:     opts,
		states:   make(map[domain.Channel]*ChannelState),
		log:      opts.Logger,
	}
}

// Provider returns the bound map provider.
func (r *Reconciler) Provider() ports.MapProvider { return r.provider }

// Policy returns the active redraw policy.
func (r *Reconciler) Policy() Policy { return r.opts.Policy }

// State returns the channel state, creating it on first use.
func (r *Reconciler) State(ch domain.Channel) *ChannelState {
	st, ok := r.states[ch]
	if !ok {
		st = newChannelState(ch, r.opts.Palette)
		r.states[ch] = st
	}
	return st
}

// Reconcile brings the channel's overlays in line with targets and moves the camera
// over every target point. Entities with no points are tracked but not drawn.
func (r *Reconciler) Reconcile(ctx context.Context, ch domain.Channel, targets []domain.Entity) domain.Plan {
	r.begin(ch)
	st := r.State(ch)
	ids, byID := dedupe(targets)

	plan := domain.Plan{Channel: ch, Provider: r.provider.Name()}
	if r.opts.Policy == PolicyFullRedraw {
		r.fullRedraw(ctx, st, ids, byID, &plan)
	} else {
		r.stableDiff(ctx, st, ids, byID, &plan)
	}

	var union []domain.Coordinate
	for _, id := range ids {
		union = append(union, byID[id].Points...)
	}
	plan.Instructions = append(plan.Instructions, r.viewport(ctx, union, len(ids) == 0))

	st.previous = ids
	return plan
}

func (r *Reconciler) stableDiff(ctx context.Context, st *ChannelState, ids []string, byID map[string]domain.Entity, plan *domain.Plan) {
	target := make(map[string]bool, len(ids))
	for _, id := range ids {
		target[id] = true
	}

	for _, id := range st.previous {
		if !target[id] {
			r.remove(ctx, st, id)
			plan.Instructions = append(plan.Instructions, domain.Instruction{Kind: domain.InstrRemoveOverlay, EntityID: id})
		}
	}

	for _, id := range ids {
		e := byID[id]
		if _, held := st.handles.Get(id); held || !e.Drawable() {
			continue
		}
		r.drawEntity(ctx, st, e, st.colors.Assign(id), plan)
	}
}

func (r *Reconciler) fullRedraw(ctx context.Context, st *ChannelState, ids []string, byID map[string]domain.Entity, plan *domain.Plan) {
	held := slices.Clone(st.previous)
	for _, id := range st.handles.IDs() {
		if !slices.Contains(held, id) {
			held = append(held, id)
		}
	}
	for _, id := range held {
		r.remove(ctx, st, id)
		plan.Instructions = append(plan.Instructions, domain.Instruction{Kind: domain.InstrRemoveOverlay, EntityID: id})
	}

	st.colors.Reset()
	for i, id := range ids {
		e := byID[id]
		if !e.Drawable() {
			continue
		}
		color := r.opts.Palette.At(i)
		st.colors.Pin(id, color)
		r.drawEntity(ctx, st, e, color, plan)
	}
}

func (r *Reconciler) drawEntity(ctx context.Context, st *ChannelState, e domain.Entity, color domain.Color, plan *domain.Plan) {
	if err := r.draw(ctx, st, e, color); err != nil {
		r.log.Warn("overlay draw failed, rolled back",
			"channel", st.channel, "entity", e.ID, "provider", r.provider.Name(), "error", err)
		plan.Failed = append(plan.Failed, e.ID)
		return
	}
	start, end := e.Points[0], e.Points[len(e.Points)-1]
	plan.Instructions = append(plan.Instructions, domain.Instruction{
		Kind:     domain.InstrDrawOverlay,
		EntityID: e.ID,
		Points:   e.Points,
		Color:    color,
		Width:    r.opts.LineWidth,
		Start:    &start,
		End:      &end,
	})
}

// draw is all-or-nothing: a failure disposes whatever was already drawn for the entity.
func (r *Reconciler) draw(ctx context.Context, st *ChannelState, e domain.Entity, color domain.Color) error {
	var bundle ports.HandleBundle
	rollback := func(cause error) error {
		if !bundle.Empty() {
			if err := r.provider.RemoveOverlaysFor(ctx, e.ID, bundle); err != nil {
				r.log.Warn("rollback failed", "entity", e.ID, "error", err)
			}
		}
		return cause
	}

	line, err := r.provider.DrawPolyline(ctx, e.ID, e.Points, color, r.opts.LineWidth)
	if err != nil {
		return rollback(fmt.Errorf("draw polyline: %w", err))
	}
	bundle.Polyline = line

	start, err := r.provider.PlaceMarker(ctx, e.ID, e.Points[0], domain.MarkerStart)
	if err != nil {
		return rollback(fmt.Errorf("place start marker: %w", err))
	}
	bundle.StartMarker = start

	end, err := r.provider.PlaceMarker(ctx, e.ID, e.Points[len(e.Points)-1], domain.MarkerEnd)
	if err != nil {
		return rollback(fmt.Errorf("place end marker: %w", err))
	}
	bundle.EndMarker = end

	st.handles.put(e.ID, drawn{bundle: bundle, points: e.Points, color: color})
	return nil
}

// remove disposes the handles of id. Errors are logged; removal is idempotent.
func (r *Reconciler) remove(ctx context.Context, st *ChannelState, id string) {
	bundle, ok := st.handles.take(id)
	if !ok {
		return
	}
	if err := r.provider.RemoveOverlaysFor(ctx, id, bundle); err != nil {
		r.log.Warn("overlay removal failed", "channel", st.channel, "entity", id, "error", err)
	}
}

func (r *Reconciler) viewport(ctx context.Context, points []domain.Coordinate, noTargets bool) domain.Instruction {
	var (
		in  domain.Instruction
		err error
	)
	switch {
	case len(points) == 0 && noTargets && r.opts.EmptyViewport == EmptyViewportDefaultCenter:
		center := r.opts.DefaultCenter
		in = domain.Instruction{Kind: domain.InstrCenterAt, Center: &center}
		err = r.provider.CenterAt(ctx, center)
	case len(points) == 0:
		in = domain.Instruction{Kind: domain.InstrNoViewportChange}
		err = r.provider.NoViewportChange(ctx)
	case r.opts.viewportFor(r.provider.Name()) == ViewportCenter:
		center, _ := geospatial.Centroid(points)
		in = domain.Instruction{Kind: domain.InstrCenterAt, Center: &center}
		err = r.provider.CenterAt(ctx, center)
	default:
		box, _ := geospatial.BoundingBox(points)
		box = geospatial.PadDegenerate(box, r.opts.MinFitRadiusM)
		in = domain.Instruction{Kind: domain.InstrFitBounds, Bounds: &box}
		err = r.provider.FitBounds(ctx, box)
	}
	if err != nil {
		r.log.Warn("viewport update failed", "kind", in.Kind, "error", err)
	}
	return in
}

// Reset disposes every overlay of the channel and forgets its ids and colors.
func (r *Reconciler) Reset(ctx context.Context, ch domain.Channel) domain.Plan {
	r.begin(ch)
	st := r.State(ch)
	plan := domain.Plan{Channel: ch, Provider: r.provider.Name()}

	for _, id := range st.handles.IDs() {
		r.remove(ctx, st, id)
		plan.Instructions = append(plan.Instructions, domain.Instruction{Kind: domain.InstrRemoveOverlay, EntityID: id})
	}
	if err := r.provider.ResetChannel(ctx, ch); err != nil {
		r.log.Warn("reset channel failed", "channel", ch, "error", err)
	}
	plan.Instructions = append(plan.Instructions, domain.Instruction{Kind: domain.InstrResetChannel})

	st.reset()
	return plan
}

// ResetAll resets every channel.
func (r *Reconciler) ResetAll(ctx context.Context) []domain.Plan {
	plans := make([]domain.Plan, 0, len(domain.Channels))
	for _, ch := range domain.Channels {
		plans = append(plans, r.Reset(ctx, ch))
	}
	return plans
}

// SwitchProvider tears everything down on the old provider, best effort, and binds p.
// Handles never carry over between providers.
func (r *Reconciler) SwitchProvider(ctx context.Context, p ports.MapProvider) []domain.Plan {
	plans := r.ResetAll(ctx)
	r.provider = p
	return plans
}

// OverlaySnapshot describes one drawn entity.
type OverlaySnapshot struct {
	ID      string              `json:"id"`
	Color   domain.Color        `json:"color"`
	Points  []domain.Coordinate `json:"points"`
	LengthM float64             `json:"length_m"`
}

// ChannelSnapshot describes the reconciled state of one channel.
type ChannelSnapshot struct {
	Channel  domain.Channel    `json:"channel"`
	Selected []string          `json:"selected"`
	Overlays []OverlaySnapshot `json:"overlays"`
}

// Snapshot reports the selected ids and drawn overlays of every channel.
func (r *Reconciler) Snapshot() []ChannelSnapshot {
	out := make([]ChannelSnapshot, 0, len(domain.Channels))
	for _, ch := range domain.Channels {
		cs := ChannelSnapshot{Channel: ch, Selected: []string{}, Overlays: []OverlaySnapshot{}}
		if st, ok := r.states[ch]; ok {
			cs.Selected = append(cs.Selected, st.previous...)
			for _, id := range st.previous {
				d, ok := st.handles.entries[id]
				if !ok {
					continue
				}
				cs.Overlays = append(cs.Overlays, OverlaySnapshot{
					ID:      id,
					Color:   d.color,
					Points:  d.points,
					LengthM: geospatial.PathLength(d.points),
				})
			}
		}
		out = append(out, cs)
	}
	return out
}

// dedupe keeps the first occurrence of every id, preserving order.
func dedupe(targets []domain.Entity) ([]string, map[string]domain.Entity) {
	ids := make([]string, 0, len(targets))
	byID := make(map[string]domain.Entity, len(targets))
	for _, e := range targets {
		if _, seen := byID[e.ID]; seen {
			continue
		}
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}
	return ids, byID
}
