package geospatial

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samirrijal/routemap/internal/core/domain"
)

// mmsPerDegree is the fixed-point scale of the MMS notation.
const mmsPerDegree = 360000

// FormatError reports a DEG string that cannot be parsed.
type FormatError struct {
	Field  string // "lat", "lng" or "" when converting a bare value
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid DEG value for %s %q: %s", e.Field, e.Input, e.Reason)
	}
	return fmt.Sprintf("invalid DEG value %q: %s", e.Input, e.Reason)
}

// DecToDec validates both axes and renders them with 6 decimals.
// Non-finite input yields the empty sentinel instead of an error.
func DecToDec(c domain.Coordinate) domain.DecNotation {
	if !c.Valid() {
		return domain.DecNotation{}
	}
	return domain.DecNotation{
		Lat: strconv.FormatFloat(round6(c.Lat), 'f', 6, 64),
		Lng: strconv.FormatFloat(round6(c.Lng), 'f', 6, 64),
	}
}

// DecToDeg renders each axis as "D M S.s". Seconds are rounded to 0.1,
// so the conversion is lossy by up to 0.05 arc-seconds.
func DecToDeg(c domain.Coordinate) domain.DegNotation {
	if !c.Valid() {
		return domain.DegNotation{}
	}
	return domain.DegNotation{Lat: formatDeg(c.Lat), Lng: formatDeg(c.Lng)}
}

func formatDeg(v float64) string {
	degrees := math.Floor(v)
	rem := (v - degrees) * 60
	minutes := math.Floor(rem)
	seconds := math.Round((rem-minutes)*60*10) / 10
	return fmt.Sprintf("%s %s %s", whole(degrees), whole(minutes), strconv.FormatFloat(seconds, 'f', 1, 64))
}

// whole renders an integral float without converting it to a fixed-width integer,
// so degrees far outside ±180 stay correct.
func whole(v float64) string {
	if v == 0 {
		return "0" // no "-0"
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

// DegToDec parses "D M S" (single-space separated) into decimal degrees rounded to 6 decimals.
func DegToDec(s string) (float64, error) {
	tokens := strings.Split(strings.TrimSpace(s), " ")
	if len(tokens) != 3 {
		return 0, &FormatError{Input: s, Reason: fmt.Sprintf("expected 3 space-separated values, got %d", len(tokens))}
	}

	var parts [3]float64
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &FormatError{Input: s, Reason: fmt.Sprintf("token %q is not a finite number", tok)}
		}
		parts[i] = v
	}

	return round6(parts[0] + parts[1]/60 + parts[2]/3600), nil
}

// ConvertDeg parses both axes of a DEG pair, tagging the failing axis.
func ConvertDeg(lat, lng string) (domain.Coordinate, error) {
	la, err := DegToDec(lat)
	if err != nil {
		err.(*FormatError).Field = "lat"
		return domain.Coordinate{}, err
	}
	ln, err := DegToDec(lng)
	if err != nil {
		err.(*FormatError).Field = "lng"
		return domain.Coordinate{}, err
	}
	return domain.Coordinate{Lat: la, Lng: ln}, nil
}

// DecToMms scales by 360000 and truncates toward zero. This is deliberate truncation,
// not rounding, matching the legacy fixed-point convention. The product is snapped to
// 1e-6 first so binary floating-point noise cannot push an exact value below its integer.
// Values beyond the int64 range saturate at math.MaxInt64 / math.MinInt64.
func DecToMms(c domain.Coordinate) domain.MmsNotation {
	return domain.MmsNotation{Lat: toMms(c.Lat), Lng: toMms(c.Lng)}
}

func toMms(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	scaled := math.Trunc(math.Round(v*mmsPerDegree*1e6) / 1e6)
	switch {
	case scaled >= 1<<63:
		return math.MaxInt64
	case scaled < -(1 << 63):
		return math.MinInt64
	}
	return int64(scaled)
}

// MmsToDec divides by 360000 and rounds to 6 decimals.
func MmsToDec(m domain.MmsNotation) domain.Coordinate {
	return domain.Coordinate{
		Lat: round6(float64(m.Lat) / mmsPerDegree),
		Lng: round6(float64(m.Lng) / mmsPerDegree),
	}
}

// AllNotations expresses a decimal coordinate in DEC, DEG and MMS at once.
func AllNotations(c domain.Coordinate) domain.Notations {
	return domain.Notations{Dec: DecToDec(c), Deg: DecToDeg(c), Mms: DecToMms(c)}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
