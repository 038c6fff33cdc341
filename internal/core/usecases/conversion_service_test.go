package usecases_test

import (
	"errors"
	"math"
	"testing"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/usecases"
	"github.com/samirrijal/routemap/internal/pkg/geospatial"
)

func TestConversionService_FromDec(t *testing.T) {
	svc := usecases.NewConversionService()

	n, err := svc.FromDec(domain.Coordinate{Lat: 37.5665, Lng: 126.978})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Dec.Lat != "37.566500" {
		t.Errorf("expected 37.566500, got %s", n.Dec.Lat)
	}
	if n.Deg.Lat != "37 33 59.4" {
		t.Errorf("expected 37 33 59.4, got %s", n.Deg.Lat)
	}
	if n.Mms.Lng != 45712080 {
		t.Errorf("expected 45712080, got %d", n.Mms.Lng)
	}
}

func TestConversionService_FromDec_NonFinite(t *testing.T) {
	svc := usecases.NewConversionService()
	if _, err := svc.FromDec(domain.Coordinate{Lat: math.NaN()}); !errors.Is(err, usecases.ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
}

func TestConversionService_FromDeg(t *testing.T) {
	svc := usecases.NewConversionService()

	n, err := svc.FromDeg("37 33 59.4", "126 58 40.8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Dec.Lng != "126.978000" {
		t.Errorf("expected 126.978000, got %s", n.Dec.Lng)
	}

	_, err = svc.FromDeg("37 33", "126 58 40.8")
	var fe *geospatial.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if fe.Field != "lat" {
		t.Errorf("expected field lat, got %s", fe.Field)
	}
}

func TestConversionService_FromMms(t *testing.T) {
	n := usecases.NewConversionService().FromMms(domain.MmsNotation{Lat: 13523940, Lng: 45712080})
	if n.Dec.Lat != "37.566500" || n.Dec.Lng != "126.978000" {
		t.Errorf("unexpected dec %+v", n.Dec)
	}
}
