package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routemap/internal/adapters/postgres"
	"github.com/samirrijal/routemap/internal/adapters/valkey"
	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Surfaces    *usecases.SurfaceService
	Payloads    *usecases.PayloadService
	Conversions *usecases.ConversionService
	NATS        *nats.Conn
	DB          *postgres.DB
	Cache       *valkey.Cache

	// DefaultProvider binds surfaces created without an explicit provider.
	DefaultProvider domain.Provider
	// OpenAPIPath is served at /docs/openapi.yaml.
	OpenAPIPath string
}
