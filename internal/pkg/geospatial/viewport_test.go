package geospatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/routemap/internal/core/domain"
)

func TestBoundingBox(t *testing.T) {
	b, ok := BoundingBox([]domain.Coordinate{
		{Lat: 37.5, Lng: 127.0},
		{Lat: 37.6, Lng: 127.1},
		{Lat: 37.55, Lng: 126.9},
	})
	require.True(t, ok)
	assert.Equal(t, domain.Bounds{
		Min: domain.Coordinate{Lat: 37.5, Lng: 126.9},
		Max: domain.Coordinate{Lat: 37.6, Lng: 127.1},
	}, b)
}

func TestBoundingBox_Empty(t *testing.T) {
	_, ok := BoundingBox(nil)
	assert.False(t, ok)

	_, ok = Centroid([]domain.Coordinate{})
	assert.False(t, ok)
}

func TestCentroid(t *testing.T) {
	c, ok := Centroid([]domain.Coordinate{{Lat: 10, Lng: 20}, {Lat: 20, Lng: 40}})
	require.True(t, ok)
	assert.InDelta(t, 15.0, c.Lat, 1e-9)
	assert.InDelta(t, 30.0, c.Lng, 1e-9)
}

func TestPadDegenerate(t *testing.T) {
	p := domain.Coordinate{Lat: 37.5, Lng: 127.0}
	b, ok := BoundingBox([]domain.Coordinate{p})
	require.True(t, ok)
	require.True(t, b.Degenerate())

	padded := PadDegenerate(b, 500)
	assert.False(t, padded.Degenerate())
	assert.Less(t, padded.Min.Lat, p.Lat)
	assert.Greater(t, padded.Max.Lng, p.Lng)
	// half-height should be ~500m
	assert.InDelta(t, 500, Haversine(p.Lat, p.Lng, padded.Max.Lat, p.Lng), 5)

	assert.Equal(t, b, PadDegenerate(b, 0))
}

func TestPathLength(t *testing.T) {
	assert.Zero(t, PathLength(nil))
	assert.Zero(t, PathLength([]domain.Coordinate{{Lat: 1, Lng: 1}}))

	d := PathLength([]domain.Coordinate{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}})
	assert.InDelta(t, 2*111195, d, 50)
}
