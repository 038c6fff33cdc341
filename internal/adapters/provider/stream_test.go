package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/overlay"
)

var pts = []domain.Coordinate{{Lat: 37.5, Lng: 127.0}, {Lat: 37.6, Lng: 127.1}}

func TestStream_RecordsReconciliation(t *testing.T) {
	s := NewStream(domain.ProviderGoogle)
	r := overlay.NewReconciler(s, overlay.Options{})

	r.Reconcile(context.Background(), domain.ChannelRoute, []domain.Entity{{ID: "A", Channel: domain.ChannelRoute, Points: pts}})
	cmds := s.Flush()

	require.Len(t, cmds, 4)
	ops := []domain.CommandOp{cmds[0].Op, cmds[1].Op, cmds[2].Op, cmds[3].Op}
	assert.Equal(t, []domain.CommandOp{domain.OpDrawPolyline, domain.OpPlaceMarker, domain.OpPlaceMarker, domain.OpFitBounds}, ops)
	for _, c := range cmds {
		assert.Equal(t, domain.ChannelRoute, c.Channel)
	}
	assert.Equal(t, domain.MarkerStart, cmds[1].Role)
	assert.Equal(t, pts[1], *cmds[2].Point)
	assert.Empty(t, s.Flush())

	r.Reconcile(context.Background(), domain.ChannelRoute, nil)
	cmds = s.Flush()
	require.Len(t, cmds, 2)
	assert.Equal(t, domain.OpRemoveOverlaysFor, cmds[0].Op)
	assert.Len(t, cmds[0].Handles, 3)
	assert.Equal(t, domain.OpNoViewportChange, cmds[1].Op)
}

func TestStream_EncodedPolylines(t *testing.T) {
	s := NewStream(domain.ProviderHere, WithEncodedPolylines())
	_, err := s.DrawPolyline(context.Background(), "A", pts, "#FF0000", 4)
	require.NoError(t, err)

	cmds := s.Flush()
	require.Len(t, cmds, 1)
	assert.Empty(t, cmds[0].Points)
	coords, _, err := polyline.DecodeCoords([]byte(cmds[0].Encoded))
	require.NoError(t, err)
	assert.InDelta(t, 37.6, coords[1][0], 1e-5)
}

func TestStream_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStream(domain.ProviderGoogle).DrawPolyline(ctx, "A", pts, "#FF0000", 4)
	assert.ErrorIs(t, err, context.Canceled)
}
