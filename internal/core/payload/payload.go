// Package payload normalizes raw coordinate payloads into canonical point lists.
//
// Every payload shape the backends have ever produced is decoded into a Payload
// first. Parse is the only place where shapes are turned into coordinates.
package payload

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/twpayne/go-polyline"

	"github.com/samirrijal/routemap/internal/core/domain"
)

// Kind tags the shape of a Payload.
type Kind string

const (
	KindEmpty           Kind = "empty"
	KindPair            Kind = "pair"             // "lng,lat"
	KindList            Kind = "list"             // JSON array of pairs and/or {lat,lng} objects
	KindLegacyText      Kind = "legacy_text"      // Coord(lat=.., lng=..),Coord(..)
	KindEncodedPolyline Kind = "encoded_polyline" // Google encoded polyline, precision 1e5
	KindGeoJSON         Kind = "geojson"          // GeoJSON geometry or feature
	KindPoints          Kind = "points"           // already canonical
)

// Payload is a tagged union over the raw shapes. Only the field matching Kind is set.
type Payload struct {
	Kind   Kind
	Text   string            // KindPair, KindLegacyText, KindEncodedPolyline
	List   []json.RawMessage // KindList
	Raw    json.RawMessage   // KindGeoJSON
	Points []domain.Coordinate
}

// Points wraps an already-canonical list.
func Points(pts []domain.Coordinate) Payload {
	return Payload{Kind: KindPoints, Points: pts}
}

var (
	pairPattern     = regexp.MustCompile(`^\s*[-+]?[\d.eE+-]+\s*,\s*[-+]?[\d.eE+-]+\s*$`)
	legacyMarker    = "Coord("
	geoJSONTypeKeys = map[string]bool{
		"Point": true, "MultiPoint": true, "LineString": true, "MultiLineString": true,
		"Polygon": true, "MultiPolygon": true, "Feature": true, "FeatureCollection": true,
	}
)

// Decode sniffs the shape of a raw payload. It never fails; shapes it cannot
// recognize decode to KindEmpty.
func Decode(raw []byte) Payload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Payload{Kind: KindEmpty}
	}

	if bytes.Contains(trimmed, []byte(legacyMarker)) {
		return Payload{Kind: KindLegacyText, Text: string(trimmed)}
	}

	switch trimmed[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return notJSON(trimmed)
		}
		return Payload{Kind: KindList, List: list}
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Payload{Kind: KindEmpty}
		}
		return decodeString(s)
	case '{':
		return decodeObject(trimmed)
	}
	return decodeString(string(trimmed))
}

// notJSON handles text that looked like JSON but was not. '[' and '{' are
// valid polyline characters, so an encoded polyline can start with either.
func notJSON(data []byte) Payload {
	if isPolyline(string(data)) {
		return Payload{Kind: KindEncodedPolyline, Text: string(data)}
	}
	return Payload{Kind: KindEmpty}
}

func decodeString(s string) Payload {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Payload{Kind: KindEmpty}
	case strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") || strings.HasPrefix(s, `"`):
		// double-encoded JSON
		return Decode([]byte(s))
	case strings.Contains(s, legacyMarker):
		return Payload{Kind: KindLegacyText, Text: s}
	case pairPattern.MatchString(s):
		return Payload{Kind: KindPair, Text: s}
	case isPolyline(s):
		return Payload{Kind: KindEncodedPolyline, Text: s}
	}
	return Payload{Kind: KindEmpty}
}

func decodeObject(data []byte) Payload {
	var probe struct {
		Type     string `json:"type"`
		Polyline string `json:"polyline"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return notJSON(data)
	}
	switch {
	case probe.Polyline != "":
		return Payload{Kind: KindEncodedPolyline, Text: probe.Polyline}
	case geoJSONTypeKeys[probe.Type]:
		return Payload{Kind: KindGeoJSON, Raw: json.RawMessage(data)}
	}
	// a lone {lat,lng} object
	return Payload{Kind: KindList, List: []json.RawMessage{json.RawMessage(data)}}
}

// minBarePolyline is the shortest unwrapped string accepted as an encoded polyline.
// A real first vertex away from (0,0) already takes 8 characters.
const minBarePolyline = 10

// isPolyline reports whether an unwrapped string is an encoded polyline: only
// polyline characters (63..126), at least minBarePolyline long, decoding completely
// into two or more in-range coordinates. Short words such as "OK" use the same
// alphabet, so the character check alone is not enough.
func isPolyline(s string) bool {
	if len(s) < minBarePolyline {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 63 || s[i] > 126 {
			return false
		}
	}
	coords, rest, err := polyline.DecodeCoords([]byte(s))
	if err != nil || len(rest) > 0 || len(coords) < 2 {
		return false
	}
	for _, c := range coords {
		if len(c) != 2 || c[0] < -90 || c[0] > 90 || c[1] < -180 || c[1] > 180 {
			return false
		}
	}
	return true
}
