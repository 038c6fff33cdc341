package usecases

import (
	"errors"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/pkg/geospatial"
)

// ErrNonFinite is returned when a decimal coordinate has a NaN or infinite axis.
var ErrNonFinite = errors.New("coordinate must be finite")

// ConversionService expresses a location in DEC, DEG and MMS.
type ConversionService struct{}

// NewConversionService creates a new ConversionService.
func NewConversionService() *ConversionService {
	return &ConversionService{}
}

// FromDec converts a decimal-degree coordinate.
func (s *ConversionService) FromDec(c domain.Coordinate) (domain.Notations, error) {
	if !c.Valid() {
		return domain.Notations{}, ErrNonFinite
	}
	return geospatial.AllNotations(c), nil
}

// FromDeg parses "D M S" strings per axis. Failures are *geospatial.FormatError.
func (s *ConversionService) FromDeg(lat, lng string) (domain.Notations, error) {
	c, err := geospatial.ConvertDeg(lat, lng)
	if err != nil {
		return domain.Notations{}, err
	}
	return geospatial.AllNotations(c), nil
}

// FromMms converts the fixed-point notation.
func (s *ConversionService) FromMms(m domain.MmsNotation) domain.Notations {
	return geospatial.AllNotations(geospatial.MmsToDec(m))
}
