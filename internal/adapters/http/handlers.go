package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/overlay"
	"github.com/samirrijal/routemap/internal/core/payload"
	"github.com/samirrijal/routemap/internal/pkg/geospatial"
)

// ---- Coordinate conversion ----

type decRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type degRequest struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

type mmsRequest struct {
	Lat *int64 `json:"lat"`
	Lng *int64 `json:"lng"`
}

// ConvertDecHandler expresses a decimal-degree coordinate in every notation.
func ConvertDecHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req decRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lng == nil {
			return errBadRequest(c, "lat and lng are required")
		}
		n, err := deps.Conversions.FromDec(domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng})
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(n)
	}
}

// ConvertDegHandler parses "D M S" strings and returns every notation.
func ConvertDegHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req degRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		n, err := deps.Conversions.FromDeg(req.Lat, req.Lng)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(n)
	}
}

// ConvertMmsHandler expresses a fixed-point MMS coordinate in every notation.
func ConvertMmsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req mmsRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lng == nil {
			return errBadRequest(c, "lat and lng are required")
		}
		return c.JSON(deps.Conversions.FromMms(domain.MmsNotation{Lat: *req.Lat, Lng: *req.Lng}))
	}
}

// ParseResult is the normalized form of a raw coordinate payload.
type ParseResult struct {
	Kind    payload.Kind        `json:"kind"`
	Points  []domain.Coordinate `json:"points"`
	Kept    int                 `json:"kept"`
	Dropped int                 `json:"dropped"`
	LengthM float64             `json:"length_m"`
}

func parseBody(body []byte) ParseResult {
	p := payload.Decode(body)
	pts, st := payload.ParseStats(p)
	return ParseResult{
		Kind:    p.Kind,
		Points:  pts,
		Kept:    st.Kept,
		Dropped: st.Dropped,
		LengthM: geospatial.PathLength(pts),
	}
}

// ParsePayloadHandler normalizes any supported payload shape sent as the request body.
// Invalid entries are dropped, never rejected.
func ParsePayloadHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(parseBody(c.Body()))
	}
}

// ---- Payloads ----

// PayloadPointsHandler returns the canonical points of one stored entity.
func PayloadPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ch, err := domain.ParseChannel(c.Params("channel"))
		if err != nil {
			return errFromDomain(c, err)
		}
		id := c.Params("id")
		pts, err := deps.Payloads.Points(c.UserContext(), ch, id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{
			"file_id":  id,
			"channel":  ch,
			"points":   pts,
			"length_m": geospatial.PathLength(pts),
		})
	}
}

// InvalidatePayloadHandler drops the cached points of one entity.
func InvalidatePayloadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ch, err := domain.ParseChannel(c.Params("channel"))
		if err != nil {
			return errFromDomain(c, err)
		}
		if err := deps.Payloads.Invalidate(c.UserContext(), ch, c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ---- Surfaces ----

type providerRequest struct {
	Provider domain.Provider `json:"provider"`
}

type clearRequest struct {
	Channels []domain.Channel `json:"channels"`
}

// CreateSurfaceHandler registers a new rendering surface.
func CreateSurfaceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req providerRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		if req.Provider == "" {
			req.Provider = deps.DefaultProvider
		}
		info, err := deps.Surfaces.Create(c.UserContext(), req.Provider)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Location("/v1/surfaces/" + info.ID)
		return c.Status(fiber.StatusCreated).JSON(info)
	}
}

// ListSurfacesHandler returns every surface, oldest first, with offset/limit pagination.
func ListSurfacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := paginate(deps.Surfaces.List(), c.QueryInt("offset", 0), c.QueryInt("limit", defaultLimit))
		SetLinkHeaders(c, page.Pagination)
		return c.JSON(page)
	}
}

// GetSurfaceHandler returns the reconciled state of a surface.
func GetSurfaceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := deps.Surfaces.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(view)
	}
}

// DeleteSurfaceHandler tears a surface down.
func DeleteSurfaceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Surfaces.Delete(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SelectHandler replaces the selection of one channel and returns the applied plan.
// Body: [{"file_id":"A", ...metadata}].
func SelectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var items []domain.SelectionItem
		if err := c.BodyParser(&items); err != nil {
			return errBadRequest(c, "body must be an array of {file_id} objects")
		}
		plan, err := deps.Surfaces.Select(c.UserContext(), c.Params("id"), domain.Channel(c.Params("channel")), items)
		if err != nil {
			return errFromDomain(c, err)
		}
		if plan.Stale {
			// superseded by a newer request before its payloads resolved
			return c.Status(fiber.StatusAccepted).JSON(plan)
		}
		return c.JSON(plan)
	}
}

// ClearHandler resets the given channels, or all of them when the body is empty.
func ClearHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req clearRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		channels := make([]domain.Channel, 0, len(req.Channels))
		for _, raw := range req.Channels {
			ch, err := domain.ParseChannel(string(raw))
			if err != nil {
				return errFromDomain(c, err)
			}
			channels = append(channels, ch)
		}
		plans, err := deps.Surfaces.Clear(c.UserContext(), c.Params("id"), channels...)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(plans)
	}
}

// SwitchProviderHandler rebinds a surface to another map provider.
func SwitchProviderHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req providerRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		plans, err := deps.Surfaces.SwitchProvider(c.UserContext(), c.Params("id"), req.Provider)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(plans)
	}
}

// SurfaceGeoJSONHandler exports the drawn overlays of a surface as a FeatureCollection.
func SurfaceGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := deps.Surfaces.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		data, err := featureCollection(view.Channels).MarshalJSON()
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}

func featureCollection(channels []overlay.ChannelSnapshot) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, cs := range channels {
		for _, ov := range cs.Overlays {
			f := geojson.NewFeature(geometry(ov.Points))
			f.ID = ov.ID
			f.Properties["channel"] = cs.Channel
			f.Properties["color"] = ov.Color
			f.Properties["length_m"] = ov.LengthM
			fc.Append(f)
		}
	}
	return fc
}

// geometry is a Point for single-point overlays and a LineString otherwise.
func geometry(points []domain.Coordinate) orb.Geometry {
	if len(points) == 1 {
		return orb.Point{points[0].Lng, points[0].Lat}
	}
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.Lng, p.Lat}
	}
	return ls
}
