package domain

import "math"

// Coordinate is a WGS 84 position in decimal degrees.
// No range clamping is applied; callers validate against provider bounds themselves.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both axes are finite.
func (c Coordinate) Valid() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lng) && !math.IsInf(c.Lng, 0)
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	Min Coordinate `json:"min"`
	Max Coordinate `json:"max"`
}

// Degenerate reports whether the box has zero area on both axes (a single point).
func (b Bounds) Degenerate() bool {
	return b.Min == b.Max
}

// DecNotation is a decimal-degrees value rendered with 6 decimals.
// The zero value (two empty strings) means "no value".
type DecNotation struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

// Empty reports whether this is the invalid-input sentinel.
func (d DecNotation) Empty() bool { return d.Lat == "" && d.Lng == "" }

// DegNotation is a degrees-minutes-seconds value per axis, formatted "D M S.s".
type DegNotation struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

// MmsNotation is the fixed-point form: decimal degrees * 360000, truncated.
type MmsNotation struct {
	Lat int64 `json:"lat"`
	Lng int64 `json:"lng"`
}

// Notations bundles one location expressed in all three notations.
type Notations struct {
	Dec DecNotation `json:"dec"`
	Deg DegNotation `json:"deg"`
	Mms MmsNotation `json:"mms"`
}
