package overlay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/palette"
)

var (
	ptsA = []domain.Coordinate{{Lat: 37.5, Lng: 127.0}, {Lat: 37.6, Lng: 127.1}}
	ptsB = []domain.Coordinate{{Lat: 35.1, Lng: 129.0}, {Lat: 35.2, Lng: 129.1}}
	ptsC = []domain.Coordinate{{Lat: 33.4, Lng: 126.5}, {Lat: 33.5, Lng: 126.6}}
)

func entity(id string, pts []domain.Coordinate) domain.Entity {
	return domain.Entity{ID: id, Channel: domain.ChannelRoute, Points: pts}
}

func TestReconcile_SingleEntityScenario(t *testing.T) {
	fp := newFakeProvider(domain.ProviderGoogle)
	r := NewReconciler(fp, Options{})

	plan := r.Reconcile(context.Background(), domain.ChannelRoute, []domain.Entity{entity("A", ptsA)})

	require.Len(t, plan.Instructions, 2)
	draw := plan.Instructions[0]
	assert.Equal(t, domain.InstrDrawOverlay, draw.Kind)
	assert.Equal(t, "A", draw.EntityID)
	assert.Equal(t, palette.Default()[0], draw.Color)
	assert.Equal(t, ptsA, draw.Points)
	assert.Equal(t, domain.Coordinate{Lat: 37.5, Lng: 127.0}, *draw.Start)
	assert.Equal(t, domain.Coordinate{Lat: 37.6, Lng: 127.1}, *draw.End)

	vp, ok := plan.Viewport()
	require.True(t, ok)
	assert.Equal(t, domain.InstrFitBounds, vp.Kind)
	assert.Equal(t, domain.Bounds{
		Min: domain.Coordinate{Lat: 37.5, Lng: 127.0},
		Max: domain.Coordinate{Lat: 37.6, Lng: 127.1},
	}, *vp.Bounds)

	assert.Equal(t, []string{"draw:A:#FF0000", "marker:A:start", "marker:A:end"}, fp.calls)
	assert.Len(t, fp.fits, 1)
}

func TestReconcile_StableDiff(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider(domain.ProviderHere)
	r := NewReconciler(fp, Options{})

	r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("A", ptsA), entity("B", ptsB)})
	bBefore, ok := r.State(domain.ChannelRoute).Handles().Get("B")
	require.True(t, ok)

	plan := r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("B", ptsB), entity("C", ptsC)})

	assert.Equal(t, []string{"A"}, plan.Removed())
	assert.Equal(t, []string{"C"}, plan.Drawn())
	bAfter, ok := r.State(domain.ChannelRoute).Handles().Get("B")
	require.True(t, ok)
	assert.Equal(t, bBefore, bAfter, "B must keep its handles")
	assert.Equal(t, 1, fp.count("draw:B"))
	assert.Equal(t, []string{"B", "C"}, r.State(domain.ChannelRoute).Previous())
	assert.Len(t, fp.live, 6)
}

func TestReconcile_ColorStableUntilReset(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(newFakeProvider(domain.ProviderGoogle), Options{})

	r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("A", ptsA), entity("B", ptsB)})
	plan := r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("B", ptsB), entity("C", ptsC)})
	require.Len(t, plan.Drawn(), 1)
	assert.Equal(t, palette.Default()[2], plan.Instructions[1].Color)

	plan = r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("C", ptsC), entity("A", ptsA)})
	assert.Equal(t, []string{"A"}, plan.Drawn())
	for _, in := range plan.Instructions {
		if in.Kind == domain.InstrDrawOverlay {
			assert.Equal(t, palette.Default()[0], in.Color, "reselected A keeps its color")
		}
	}

	r.Reset(ctx, domain.ChannelRoute)
	plan = r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("C", ptsC)})
	assert.Equal(t, palette.Default()[0], plan.Instructions[0].Color)
}

func TestReconcile_UncheckLastEntity(t *testing.T) {
	ctx := context.Background()

	t.Run("no viewport change", func(t *testing.T) {
		fp := newFakeProvider(domain.ProviderTMap)
		r := NewReconciler(fp, Options{})
		r.Reconcile(ctx, domain.ChannelSpace, []domain.Entity{entity("A", ptsA), entity("B", ptsB)})

		plan := r.Reconcile(ctx, domain.ChannelSpace, nil)
		assert.ElementsMatch(t, []string{"A", "B"}, plan.Removed())
		vp, ok := plan.Viewport()
		require.True(t, ok)
		assert.Equal(t, domain.InstrNoViewportChange, vp.Kind)
		assert.Empty(t, fp.live)
	})

	t.Run("default center", func(t *testing.T) {
		fp := newFakeProvider(domain.ProviderTMap)
		center := domain.Coordinate{Lat: 37.5665, Lng: 126.978}
		r := NewReconciler(fp, Options{EmptyViewport: EmptyViewportDefaultCenter, DefaultCenter: center})
		r.Reconcile(ctx, domain.ChannelSpace, []domain.Entity{entity("A", ptsA)})

		plan := r.Reconcile(ctx, domain.ChannelSpace, []domain.Entity{})
		assert.Equal(t, []string{"A"}, plan.Removed())
		vp, _ := plan.Viewport()
		assert.Equal(t, domain.InstrCenterAt, vp.Kind)
		assert.Equal(t, center, *vp.Center)
		assert.Equal(t, []domain.Coordinate{center}, fp.centers)
	})
}

func TestReconcile_EmptyPointsNoViewportChange(t *testing.T) {
	fp := newFakeProvider(domain.ProviderGoogle)
	r := NewReconciler(fp, Options{EmptyViewport: EmptyViewportDefaultCenter})

	plan := r.Reconcile(context.Background(), domain.ChannelRoute, []domain.Entity{entity("A", nil)})
	assert.Empty(t, plan.Drawn())
	vp, _ := plan.Viewport()
	assert.Equal(t, domain.InstrNoViewportChange, vp.Kind, "selected but undrawable is not an empty selection")
	assert.Empty(t, fp.fits)
	assert.Empty(t, fp.centers)
}

func TestReconcile_EntityDrawnWhenPointsArrive(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(newFakeProvider(domain.ProviderGoogle), Options{})

	r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("A", nil)})
	plan := r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("A", ptsA)})
	assert.Equal(t, []string{"A"}, plan.Drawn())
	assert.Empty(t, plan.Removed())
}

func TestReconcile_DrawFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider(domain.ProviderBaidu)
	fp.failOn["marker:B:end"] = errBoom
	r := NewReconciler(fp, Options{})

	plan := r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("A", ptsA), entity("B", ptsB)})
	assert.Equal(t, []string{"A"}, plan.Drawn())
	assert.Equal(t, []string{"B"}, plan.Failed)
	_, held := r.State(domain.ChannelRoute).Handles().Get("B")
	assert.False(t, held)
	assert.Len(t, fp.live, 3, "only A's three handles survive")

	delete(fp.failOn, "marker:B:end")
	plan = r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("A", ptsA), entity("B", ptsB)})
	assert.Equal(t, []string{"B"}, plan.Drawn())
	assert.Empty(t, plan.Failed)
}

func TestReconcile_RemovalErrorsAreIgnored(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider(domain.ProviderGoogle)
	fp.failOn["remove:A"] = errBoom
	r := NewReconciler(fp, Options{})

	r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("A", ptsA)})
	plan := r.Reconcile(ctx, domain.ChannelRoute, nil)
	assert.Equal(t, []string{"A"}, plan.Removed())
	assert.Zero(t, r.State(domain.ChannelRoute).Handles().Len())
}

func TestReconcile_DuplicateIDsFirstWins(t *testing.T) {
	r := NewReconciler(newFakeProvider(domain.ProviderGoogle), Options{})
	plan := r.Reconcile(context.Background(), domain.ChannelRoute, []domain.Entity{entity("A", ptsA), entity("A", ptsB)})

	require.Equal(t, []string{"A"}, plan.Drawn())
	assert.Equal(t, ptsA, plan.Instructions[0].Points)
	assert.Equal(t, []string{"A"}, r.State(domain.ChannelRoute).Previous())
}

func TestReconcile_FullRedraw(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider(domain.ProviderRouto)
	r := NewReconciler(fp, Options{Policy: PolicyFullRedraw})

	r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("A", ptsA), entity("B", ptsB)})
	plan := r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("B", ptsB), entity("C", ptsC)})

	assert.Equal(t, []string{"A", "B"}, plan.Removed())
	assert.Equal(t, []string{"B", "C"}, plan.Drawn())
	colors := map[string]domain.Color{}
	for _, in := range plan.Instructions {
		if in.Kind == domain.InstrDrawOverlay {
			colors[in.EntityID] = in.Color
		}
	}
	assert.Equal(t, palette.Default()[0], colors["B"], "color follows list position")
	assert.Equal(t, palette.Default()[1], colors["C"])
	assert.Equal(t, 2, fp.count("draw:B"))
	assert.Len(t, fp.live, 6)
}

func TestReconcile_DegenerateBoxIsPadded(t *testing.T) {
	fp := newFakeProvider(domain.ProviderGoogle)
	r := NewReconciler(fp, Options{MinFitRadiusM: 250})
	single := []domain.Coordinate{{Lat: 37.5, Lng: 127.0}}

	plan := r.Reconcile(context.Background(), domain.ChannelRoute, []domain.Entity{entity("A", single)})
	vp, _ := plan.Viewport()
	require.Equal(t, domain.InstrFitBounds, vp.Kind)
	assert.False(t, vp.Bounds.Degenerate())
	assert.Less(t, vp.Bounds.Min.Lat, 37.5)
}

func TestReconcile_CenterModePerProvider(t *testing.T) {
	fp := newFakeProvider(domain.ProviderTomTom)
	r := NewReconciler(fp, Options{ProviderViewports: map[domain.Provider]ViewportMode{domain.ProviderTomTom: ViewportCenter}})

	plan := r.Reconcile(context.Background(), domain.ChannelRoute, []domain.Entity{entity("A", ptsA)})
	vp, _ := plan.Viewport()
	assert.Equal(t, domain.InstrCenterAt, vp.Kind)
	assert.InDelta(t, 37.55, vp.Center.Lat, 1e-9)
	assert.InDelta(t, 127.05, vp.Center.Lng, 1e-9)
}

func TestSwitchProvider_ResetsEverything(t *testing.T) {
	ctx := context.Background()
	old := newFakeProvider(domain.ProviderGoogle)
	r := NewReconciler(old, Options{})
	r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("A", ptsA), entity("B", ptsB)})
	r.Reconcile(ctx, domain.ChannelSpace, []domain.Entity{entity("S", ptsC)})

	next := newFakeProvider(domain.ProviderHere)
	plans := r.SwitchProvider(ctx, next)
	require.Len(t, plans, 2)
	assert.Empty(t, old.live)
	assert.Equal(t, []domain.Channel{domain.ChannelRoute, domain.ChannelSpace}, old.resets)

	plan := r.Reconcile(ctx, domain.ChannelRoute, []domain.Entity{entity("B", ptsB)})
	assert.Equal(t, domain.ProviderHere, plan.Provider)
	assert.Equal(t, []string{"B"}, plan.Drawn())
	assert.Equal(t, palette.Default()[0], plan.Instructions[0].Color)
	assert.Len(t, next.live, 3)
}

func TestSnapshot(t *testing.T) {
	r := NewReconciler(newFakeProvider(domain.ProviderGoogle), Options{})
	r.Reconcile(context.Background(), domain.ChannelRoute, []domain.Entity{entity("A", ptsA), entity("Z", nil)})

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, []string{"A", "Z"}, snap[0].Selected)
	require.Len(t, snap[0].Overlays, 1)
	assert.Equal(t, "A", snap[0].Overlays[0].ID)
	assert.Greater(t, snap[0].Overlays[0].LengthM, 10000.0)
	assert.Empty(t, snap[1].Selected)
}

func TestGenerations(t *testing.T) {
	g := NewGenerations()
	first := g.Next(domain.ChannelRoute)
	assert.True(t, g.IsCurrent(first))

	second := g.Next(domain.ChannelRoute)
	assert.False(t, g.IsCurrent(first))
	assert.True(t, g.IsCurrent(second))

	space := g.Next(domain.ChannelSpace)
	assert.True(t, g.IsCurrent(second), "channels are independent")

	g.Invalidate()
	assert.False(t, g.IsCurrent(second))
	assert.False(t, g.IsCurrent(space))
}
