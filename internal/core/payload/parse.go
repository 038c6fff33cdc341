package payload

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"

	"github.com/samirrijal/routemap/internal/core/domain"
)

var (
	legacyCoord  = regexp.MustCompile(`Coord\(lat=([\d.-]+),\s*lng=([\d.-]+)\)`)
	legacyObject = regexp.MustCompile(`\{[^{}]*\}`)
)

// Stats counts what Parse kept and dropped.
type Stats struct {
	Kept    int
	Dropped int
}

// Parse normalizes p into an ordered list of finite coordinates.
// Malformed entries are dropped; the result is never nil.
func Parse(p Payload) []domain.Coordinate {
	pts, _ := ParseStats(p)
	return pts
}

// ParseRaw is Parse(Decode(raw)).
func ParseRaw(raw []byte) []domain.Coordinate {
	return Parse(Decode(raw))
}

// ParseStats is Parse that also reports how many entries were dropped.
func ParseStats(p Payload) ([]domain.Coordinate, Stats) {
	out := make([]domain.Coordinate, 0, estimate(p))
	var st Stats

	keep := func(c domain.Coordinate, ok bool) {
		if ok && c.Valid() {
			out = append(out, c)
			st.Kept++
			return
		}
		st.Dropped++
	}

	switch p.Kind {
	case KindPair:
		keep(parsePair(p.Text))
	case KindList:
		for _, el := range p.List {
			keep(parseElement(el))
		}
	case KindLegacyText:
		rewritten := legacyCoord.ReplaceAllString(p.Text, `{"lat":$1,"lng":$2}`)
		for _, obj := range legacyObject.FindAllString(rewritten, -1) {
			keep(parseObject([]byte(obj)))
		}
	case KindEncodedPolyline:
		coords, _, err := polyline.DecodeCoords([]byte(p.Text))
		if err != nil {
			st.Dropped++
			break
		}
		for _, c := range coords {
			keep(domain.Coordinate{Lat: c[0], Lng: c[1]}, len(c) == 2)
		}
	case KindGeoJSON:
		g, ok := geometryOf(p.Raw)
		if !ok {
			st.Dropped++
			break
		}
		for _, pt := range flatten(g) {
			keep(domain.Coordinate{Lat: pt.Lat(), Lng: pt.Lon()}, true)
		}
	case KindPoints:
		for _, c := range p.Points {
			keep(c, true)
		}
	}
	return out, st
}

func estimate(p Payload) int {
	switch p.Kind {
	case KindList:
		return len(p.List)
	case KindPoints:
		return len(p.Points)
	}
	return 0
}

// parsePair reads "lng,lat". Longitude comes first.
func parsePair(s string) (domain.Coordinate, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return domain.Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	return domain.Coordinate{Lat: lat, Lng: lng}, true
}

func parseElement(el json.RawMessage) (domain.Coordinate, bool) {
	trimmed := strings.TrimSpace(string(el))
	if trimmed == "" {
		return domain.Coordinate{}, false
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(el, &s); err != nil {
			return domain.Coordinate{}, false
		}
		return parsePair(s)
	case '{':
		return parseObject(el)
	}
	return domain.Coordinate{}, false
}

// parseObject reads {lat, lng}; values may be numbers or numeric strings.
// "lon" is accepted when "lng" is absent.
func parseObject(data []byte) (domain.Coordinate, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return domain.Coordinate{}, false
	}
	lat, ok := number(fields["lat"])
	if !ok {
		return domain.Coordinate{}, false
	}
	lngRaw, present := fields["lng"]
	if !present {
		lngRaw = fields["lon"]
	}
	lng, ok := number(lngRaw)
	if !ok {
		return domain.Coordinate{}, false
	}
	return domain.Coordinate{Lat: lat, Lng: lng}, true
}

func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func geometryOf(raw json.RawMessage) (orb.Geometry, bool) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, false
	}
	switch probe.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil || f.Geometry == nil {
			return nil, false
		}
		return f.Geometry, true
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, false
		}
		var c orb.Collection
		for _, f := range fc.Features {
			if f.Geometry != nil {
				c = append(c, f.Geometry)
			}
		}
		return c, true
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil || g.Geometry() == nil {
		return nil, false
	}
	return g.Geometry(), true
}

// flatten lists every vertex in drawing order. Polygons contribute their outer ring.
func flatten(g orb.Geometry) []orb.Point {
	switch v := g.(type) {
	case orb.Point:
		return []orb.Point{v}
	case orb.MultiPoint:
		return v
	case orb.LineString:
		return v
	case orb.Ring:
		return v
	case orb.MultiLineString:
		var out []orb.Point
		for _, ls := range v {
			out = append(out, ls...)
		}
		return out
	case orb.Polygon:
		if len(v) == 0 {
			return nil
		}
		return v[0]
	case orb.MultiPolygon:
		var out []orb.Point
		for _, poly := range v {
			if len(poly) > 0 {
				out = append(out, poly[0]...)
			}
		}
		return out
	case orb.Collection:
		var out []orb.Point
		for _, sub := range v {
			out = append(out, flatten(sub)...)
		}
		return out
	}
	return nil
}
