package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/routemap/internal/adapters/http"
	"github.com/samirrijal/routemap/internal/adapters/provider"
	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/overlay"
	"github.com/samirrijal/routemap/internal/core/ports"
	"github.com/samirrijal/routemap/internal/core/usecases"
)

// ---- Mocks ----

type mockSource struct {
	fetchFn func(ctx context.Context, ch domain.Channel, fileID string) ([]byte, error)
}

func (m *mockSource) FetchPayload(ctx context.Context, ch domain.Channel, fileID string) ([]byte, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, ch, fileID)
	}
	return nil, domain.ErrPayloadNotFound
}

type mockPublisher struct {
	mu      sync.Mutex
	batches []*domain.CommandBatch
}

func (m *mockPublisher) PublishCommands(ctx context.Context, batch *domain.CommandBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return nil
}

func (m *mockPublisher) PublishSelection(ctx context.Context, event *domain.SelectionEvent) error {
	return nil
}

var payloads = map[string]string{
	"A": `[{"lat":37.5665,"lng":126.978},{"lat":37.5651,"lng":126.9895}]`,
	"B": `Coord(lat=35.1796, lng=129.0756), Coord(lat=35.1586, lng=129.1604)`,
	"C": `"126.5312,33.4996"`, // lng,lat
}

func fixtureSource() *mockSource {
	return &mockSource{fetchFn: func(ctx context.Context, ch domain.Channel, fileID string) ([]byte, error) {
		raw, ok := payloads[fileID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrPayloadNotFound, fileID)
		}
		return []byte(raw), nil
	}}
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	pl := usecases.NewPayloadService(fixtureSource(), nil, usecases.PayloadOptions{Timeout: time.Second})
	d := &handler.Dependencies{
		Payloads:    pl,
		Conversions: usecases.NewConversionService(),
		Surfaces: usecases.NewSurfaceService(pl, nil, func(p domain.Provider) ports.CommandRecorder {
			return provider.NewStream(p)
		}, overlay.Options{}),
		DefaultProvider: domain.ProviderGoogle,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, readBody(t, resp.Body)
}

func createSurface(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := do(t, app, "POST", "/v1/surfaces", `{"provider":"google"}`)
	if status != 201 {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	var info usecases.SurfaceInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatal(err)
	}
	return info.ID
}

type apiError struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
	Field  string `json:"field"`
}

// ---- Coordinate handler tests ----

func TestConvertDec_Success(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := do(t, app, "POST", "/v1/coordinates/dec", `{"lat":37.5665,"lng":126.978}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var n domain.Notations
	if err := json.Unmarshal(body, &n); err != nil {
		t.Fatal(err)
	}
	if n.Dec.Lat != "37.566500" {
		t.Errorf("expected dec lat 37.566500, got %s", n.Dec.Lat)
	}
	if n.Deg.Lat != "37 33 59.4" {
		t.Errorf("expected deg lat \"37 33 59.4\", got %q", n.Deg.Lat)
	}
	if n.Mms.Lat != 13523940 {
		t.Errorf("expected mms lat 13523940, got %d", n.Mms.Lat)
	}
}

func TestConvertDec_MissingAxis(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := do(t, app, "POST", "/v1/coordinates/dec", `{"lat":37.5}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestConvertDeg_FormatError(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := do(t, app, "POST", "/v1/coordinates/deg", `{"lat":"37 33 59.4","lng":"126 58"}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	var e apiError
	json.Unmarshal(body, &e)
	if e.Code != "format_error" {
		t.Errorf("expected format_error, got %s", e.Code)
	}
	if e.Field != "lng" {
		t.Errorf("expected field lng, got %q", e.Field)
	}
}

func TestConvertMms_Success(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := do(t, app, "POST", "/v1/coordinates/mms", `{"lat":13523940,"lng":45712080}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var n domain.Notations
	json.Unmarshal(body, &n)
	if n.Dec.Lat != "37.566500" || n.Dec.Lng != "126.978000" {
		t.Errorf("unexpected dec %+v", n.Dec)
	}
}

func TestParsePayload_DropsInvalidEntries(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := do(t, app, "POST", "/v1/coordinates/parse", `[{"lat":1,"lng":2},{"lat":"x"},"3,4"]`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var res handler.ParseResult
	json.Unmarshal(body, &res)
	if res.Kept != 2 || res.Dropped != 1 {
		t.Errorf("expected 2 kept / 1 dropped, got %d / %d", res.Kept, res.Dropped)
	}
	if len(res.Points) != 2 || res.Points[1].Lat != 4 {
		t.Errorf("unexpected points %+v", res.Points)
	}
}

func TestLegacyParse_Deprecated(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/coordinates/legacy", strings.NewReader(payloads["B"]))
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header")
	}
	if !strings.Contains(resp.Header.Get("Link"), "/v1/coordinates/parse") {
		t.Errorf("expected successor link, got %q", resp.Header.Get("Link"))
	}
	var res handler.ParseResult
	json.NewDecoder(resp.Body).Decode(&res)
	if res.Kind != "legacy_text" || len(res.Points) != 2 {
		t.Errorf("unexpected result %+v", res)
	}
}

// ---- Payload handler tests ----

func TestPayloadPoints_Success(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := do(t, app, "GET", "/v1/payloads/route/C", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var res struct {
		Points []domain.Coordinate `json:"points"`
	}
	json.Unmarshal(body, &res)
	if len(res.Points) != 1 || res.Points[0].Lng != 126.5312 {
		t.Errorf("unexpected points %+v", res.Points)
	}
}

func TestPayloadPoints_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := do(t, app, "GET", "/v1/payloads/route/nope", "")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestPayloadPoints_UnknownChannel(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := do(t, app, "GET", "/v1/payloads/lines/A", "")
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

// ---- Surface handler tests ----

func TestCreateSurface_DefaultProvider(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.DefaultProvider = domain.ProviderHere }))

	status, body := do(t, app, "POST", "/v1/surfaces", "")
	if status != 201 {
		t.Fatalf("expected 201, got %d", status)
	}
	var info usecases.SurfaceInfo
	json.Unmarshal(body, &info)
	if info.Provider != domain.ProviderHere {
		t.Errorf("expected here, got %s", info.Provider)
	}
}

func TestCreateSurface_UnknownProvider(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := do(t, app, "POST", "/v1/surfaces", `{"provider":"bing"}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestSelect_StableDiff(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSurface(t, app)

	status, _ := do(t, app, "PUT", "/v1/surfaces/"+id+"/selection/route", `[{"file_id":"A"},{"file_id":"B"}]`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}

	status, body := do(t, app, "PUT", "/v1/surfaces/"+id+"/selection/route", `[{"file_id":"B","name":"Busan"},{"file_id":"C"}]`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var plan domain.Plan
	json.Unmarshal(body, &plan)
	if removed := plan.Removed(); len(removed) != 1 || removed[0] != "A" {
		t.Errorf("expected A removed, got %v", removed)
	}
	if drawn := plan.Drawn(); len(drawn) != 1 || drawn[0] != "C" {
		t.Errorf("expected C drawn, got %v", drawn)
	}
	if plan.Generation != 2 {
		t.Errorf("expected generation 2, got %d", plan.Generation)
	}

	_, body = do(t, app, "GET", "/v1/surfaces/"+id, "")
	var view usecases.SurfaceView
	json.Unmarshal(body, &view)
	if got := view.Items[domain.ChannelRoute]; len(got) != 2 || got[0].Metadata["name"] != "Busan" {
		t.Errorf("expected metadata to survive, got %+v", got)
	}
	if len(view.Channels[0].Overlays) != 2 {
		t.Errorf("expected 2 overlays, got %d", len(view.Channels[0].Overlays))
	}
}

func TestSelect_BadBody(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSurface(t, app)

	status, _ := do(t, app, "PUT", "/v1/surfaces/"+id+"/selection/route", `{"file_id":"A"}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestSelect_SurfaceNotFound(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := do(t, app, "PUT", "/v1/surfaces/nope/selection/route", `[]`)
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	var e apiError
	json.Unmarshal(body, &e)
	if e.Code != "not_found" {
		t.Errorf("expected not_found, got %s", e.Code)
	}
}

func TestClear_OneChannel(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSurface(t, app)
	do(t, app, "PUT", "/v1/surfaces/"+id+"/selection/route", `[{"file_id":"A"}]`)
	do(t, app, "PUT", "/v1/surfaces/"+id+"/selection/space", `[{"file_id":"C"}]`)

	status, body := do(t, app, "POST", "/v1/surfaces/"+id+"/clear", `{"channels":["route"]}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var plans []domain.Plan
	json.Unmarshal(body, &plans)
	if len(plans) != 1 || plans[0].Channel != domain.ChannelRoute {
		t.Errorf("unexpected plans %+v", plans)
	}

	status, _ = do(t, app, "POST", "/v1/surfaces/"+id+"/clear", `{"channels":["lines"]}`)
	if status != 400 {
		t.Errorf("expected 400 for unknown channel, got %d", status)
	}
}

func TestSwitchProvider_Resets(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSurface(t, app)
	do(t, app, "PUT", "/v1/surfaces/"+id+"/selection/route", `[{"file_id":"A"}]`)

	status, _ := do(t, app, "PUT", "/v1/surfaces/"+id+"/provider", `{"provider":"baidu"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}

	_, body := do(t, app, "GET", "/v1/surfaces/"+id, "")
	var view usecases.SurfaceView
	json.Unmarshal(body, &view)
	if view.Provider != domain.ProviderBaidu {
		t.Errorf("expected baidu, got %s", view.Provider)
	}
	if len(view.Channels[0].Overlays) != 0 {
		t.Errorf("expected no overlays after switch, got %d", len(view.Channels[0].Overlays))
	}
}

func TestSurfaceGeoJSON(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSurface(t, app)
	do(t, app, "PUT", "/v1/surfaces/"+id+"/selection/route", `[{"file_id":"A"}]`)
	do(t, app, "PUT", "/v1/surfaces/"+id+"/selection/space", `[{"file_id":"C"}]`)

	req := httptest.NewRequest("GET", "/v1/surfaces/"+id+"/geojson", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("unexpected content type %q", ct)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	json.NewDecoder(resp.Body).Decode(&fc)
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("unexpected collection %+v", fc)
	}
	if fc.Features[0].Geometry.Type != "LineString" || fc.Features[1].Geometry.Type != "Point" {
		t.Errorf("unexpected geometries %s / %s", fc.Features[0].Geometry.Type, fc.Features[1].Geometry.Type)
	}
	if fc.Features[0].Properties["color"] != "#FF0000" {
		t.Errorf("unexpected color %v", fc.Features[0].Properties["color"])
	}
	if l, _ := fc.Features[0].Properties["length_m"].(float64); l < 900 || l > 1100 {
		t.Errorf("unexpected length %v", fc.Features[0].Properties["length_m"])
	}
}

func TestListSurfaces_Pagination(t *testing.T) {
	app := setupApp(makeDeps())
	for range 3 {
		createSurface(t, app)
	}

	req := httptest.NewRequest("GET", "/v1/surfaces?offset=1&limit=1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Link"), `rel="next"`) {
		t.Errorf("expected next link, got %q", resp.Header.Get("Link"))
	}
	var page struct {
		Data       []usecases.SurfaceInfo `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&page)
	if page.Pagination.Total != 3 || len(page.Data) != 1 {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestDeleteSurface(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSurface(t, app)

	status, _ := do(t, app, "DELETE", "/v1/surfaces/"+id, "")
	if status != 204 {
		t.Fatalf("expected 204, got %d", status)
	}
	status, _ = do(t, app, "GET", "/v1/surfaces/"+id, "")
	if status != 404 {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

// ---- GraphQL tests ----

func TestGraphQL_ConvertAndSelect(t *testing.T) {
	app := setupApp(makeDeps())
	id := createSurface(t, app)

	query := fmt.Sprintf(`{"query":"mutation { select(surface: \"%s\", channel: \"route\", file_ids: [\"A\", \"B\"]) { drawn stale } }"}`, id)
	status, body := do(t, app, "POST", "/graphql", query)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var sel struct {
		Data struct {
			Select struct {
				Drawn []string `json:"drawn"`
				Stale bool     `json:"stale"`
			} `json:"select"`
		} `json:"data"`
	}
	json.Unmarshal(body, &sel)
	if len(sel.Data.Select.Drawn) != 2 || sel.Data.Select.Stale {
		t.Errorf("unexpected select result %s", body)
	}

	status, body = do(t, app, "POST", "/graphql", `{"query":"{ convertDeg(lat: \"37 33 59.4\", lng: \"126 58 40.8\") { dec { lat lng } mms { lat } } }"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var conv struct {
		Data struct {
			ConvertDeg struct {
				Dec struct {
					Lat string `json:"lat"`
				} `json:"dec"`
			} `json:"convertDeg"`
		} `json:"data"`
	}
	json.Unmarshal(body, &conv)
	if conv.Data.ConvertDeg.Dec.Lat != "37.566500" {
		t.Errorf("unexpected convertDeg result %s", body)
	}
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := do(t, app, "GET", "/v1/health", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"healthy"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestReady_NothingConfigured(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := do(t, app, "GET", "/v1/ready", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if !strings.Contains(string(body), "not configured") {
		t.Errorf("unexpected body %s", body)
	}
}
