package usecases

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/overlay"
	"github.com/samirrijal/routemap/internal/core/ports"
	"github.com/samirrijal/routemap/internal/pkg/metrics"
	"github.com/samirrijal/routemap/internal/pkg/telemetry"
)

// PayloadFetcher resolves entity ids into point lists; failed ids map to empty lists.
type PayloadFetcher interface {
	FetchBatch(ctx context.Context, ch domain.Channel, ids []string) map[string][]domain.Coordinate
}

// RecorderFactory creates the provider binding of a new surface.
type RecorderFactory func(p domain.Provider) ports.CommandRecorder

// surface is one rendering surface. mu serializes every event on it.
type surface struct {
	id         string
	createdAt  time.Time
	mu         sync.Mutex
	recorder   ports.CommandRecorder
	reconciler *overlay.Reconciler
	gens       *overlay.Generations
	selections map[domain.Channel][]domain.SelectionItem
}

// SurfaceInfo summarizes a surface for listings.
type SurfaceInfo struct {
	ID         string                 `json:"id"`
	Provider   domain.Provider        `json:"provider"`
	CreatedAt  time.Time              `json:"created_at"`
	Selections map[domain.Channel]int `json:"selections"`
}

// SurfaceView is the full reconciled state of a surface.
type SurfaceView struct {
	SurfaceInfo
	Channels    []overlay.ChannelSnapshot                 `json:"channels"`
	Items       map[domain.Channel][]domain.SelectionItem `json:"items"`
	Generations map[domain.Channel]uint64                 `json:"generations"`
}

// SurfaceService manages rendering surfaces and applies selection changes to them.
type SurfaceService struct {
	mu          sync.RWMutex
	surfaces    map[string]*surface
	payloads    PayloadFetcher
	publisher   ports.EventPublisher
	newRecorder RecorderFactory
	opts        overlay.Options
	now         func() time.Time
}

// NewSurfaceService creates a new SurfaceService. publisher may be nil.
func NewSurfaceService(payloads PayloadFetcher, publisher ports.EventPublisher, newRecorder RecorderFactory, opts overlay.Options) *SurfaceService {
	return &SurfaceService{
		surfaces:    make(map[string]*surface),
		payloads:    payloads,
		publisher:   publisher,
		newRecorder: newRecorder,
		opts:        opts,
		now:         time.Now,
	}
}

// Create registers a new surface drawn by provider p.
func (s *SurfaceService) Create(ctx context.Context, p domain.Provider) (*SurfaceInfo, error) {
	p, err := domain.ParseProvider(string(p))
	if err != nil {
		return nil, err
	}
	rec := s.newRecorder(p)
	sf := &surface{
		id:         uuid.NewString(),
		createdAt:  s.now().UTC(),
		recorder:   rec,
		reconciler: overlay.NewReconciler(rec, s.opts),
		gens:       overlay.NewGenerations(),
		selections: make(map[domain.Channel][]domain.SelectionItem),
	}

	s.mu.Lock()
	s.surfaces[sf.id] = sf
	metrics.ActiveSurfaces.Set(float64(len(s.surfaces)))
	s.mu.Unlock()

	slog.InfoContext(ctx, "surface created", "surface", sf.id, "provider", p)
	info := sf.info()
	return &info, nil
}

// List returns every surface, oldest first.
func (s *SurfaceService) List() []SurfaceInfo {
	s.mu.RLock()
	all := make([]*surface, 0, len(s.surfaces))
	for _, sf := range s.surfaces {
		all = append(all, sf)
	}
	s.mu.RUnlock()

	out := make([]SurfaceInfo, 0, len(all))
	for _, sf := range all {
		sf.mu.Lock()
		out = append(out, sf.info())
		sf.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b SurfaceInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Get returns the reconciled state of a surface.
func (s *SurfaceService) Get(id string) (*SurfaceView, error) {
	sf, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sf.mu.Lock()
	defer sf.mu.Unlock()

	view := &SurfaceView{
		SurfaceInfo: sf.info(),
		Channels:    sf.reconciler.Snapshot(),
		Items:       make(map[domain.Channel][]domain.SelectionItem, len(domain.Channels)),
		Generations: make(map[domain.Channel]uint64, len(domain.Channels)),
	}
	for _, ch := range domain.Channels {
		view.Items[ch] = append([]domain.SelectionItem{}, sf.selections[ch]...)
		view.Generations[ch] = sf.gens.Current(ch)
	}
	return view, nil
}

// Delete tears down every overlay of the surface and unregisters it.
func (s *SurfaceService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	sf, ok := s.surfaces[id]
	if ok {
		delete(s.surfaces, id)
	}
	metrics.ActiveSurfaces.Set(float64(len(s.surfaces)))
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSurfaceNotFound, id)
	}

	sf.gens.Invalidate()
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.reconciler.ResetAll(ctx)
	s.publish(ctx, sf, sf.recorder, "", 0)
	slog.InfoContext(ctx, "surface deleted", "surface", id)
	return nil
}

// Select replaces the selection of one channel. Payloads are fetched outside the
// surface lock; if a newer Select, Clear or SwitchProvider arrived meanwhile the
// result is discarded and the returned plan is marked Stale.
func (s *SurfaceService) Select(ctx context.Context, id string, ch domain.Channel, items []domain.SelectionItem) (domain.Plan, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanSelect,
		trace.WithAttributes(
			attribute.String("surface", id),
			attribute.String("channel", string(ch)),
			attribute.Int("items", len(items)),
		))
	defer span.End()

	ch, err := domain.ParseChannel(string(ch))
	if err != nil {
		return domain.Plan{}, err
	}
	sf, err := s.lookup(id)
	if err != nil {
		return domain.Plan{}, err
	}

	start := time.Now()
	tok := sf.gens.Next(ch)
	ids := fileIDs(items)
	fetched := s.payloads.FetchBatch(ctx, ch, ids)

	sf.mu.Lock()
	defer sf.mu.Unlock()

	if !sf.gens.IsCurrent(tok) {
		metrics.StaleBatchesDiscarded.WithLabelValues(string(ch)).Inc()
		slog.DebugContext(ctx, "stale selection batch discarded",
			"surface", id, "channel", ch, "generation", tok.Generation, "current", sf.gens.Current(ch))
		span.SetAttributes(attribute.Bool("stale", true))
		return domain.Plan{SurfaceID: id, Channel: ch, Provider: sf.recorder.Name(), Generation: tok.Generation, Stale: true}, nil
	}

	targets := make([]domain.Entity, 0, len(ids))
	for _, fid := range ids {
		targets = append(targets, domain.Entity{ID: fid, Channel: ch, Points: fetched[fid]})
	}

	plan := sf.reconciler.Reconcile(ctx, ch, targets)
	plan.SurfaceID = id
	plan.Generation = tok.Generation
	sf.selections[ch] = slices.Clone(items)
	s.publish(ctx, sf, sf.recorder, ch, tok.Generation)

	recordPlan(plan, sf.reconciler.Policy())
	metrics.ReconcileDuration.WithLabelValues(string(ch)).Observe(time.Since(start).Seconds())
	return plan, nil
}

// HandleSelectionEvent applies a selection received from the message broker.
func (s *SurfaceService) HandleSelectionEvent(ctx context.Context, ev *domain.SelectionEvent) error {
	_, err := s.Select(ctx, ev.SurfaceID, ev.Channel, ev.Items)
	return err
}

// Clear resets the given channels, or every channel when none is given.
func (s *SurfaceService) Clear(ctx context.Context, id string, channels ...domain.Channel) ([]domain.Plan, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanClear, trace.WithAttributes(attribute.String("surface", id)))
	defer span.End()

	sf, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		channels = domain.Channels
	}
	targets := make([]domain.Channel, 0, len(channels))
	for _, raw := range channels {
		ch, err := domain.ParseChannel(string(raw))
		if err != nil {
			return nil, err
		}
		targets = append(targets, ch)
	}

	sf.mu.Lock()
	defer sf.mu.Unlock()

	plans := make([]domain.Plan, 0, len(targets))
	for _, ch := range targets {
		tok := sf.gens.Next(ch)
		plan := sf.reconciler.Reset(ctx, ch)
		plan.SurfaceID = id
		plan.Generation = tok.Generation
		delete(sf.selections, ch)
		s.publish(ctx, sf, sf.recorder, ch, tok.Generation)
		recordPlan(plan, sf.reconciler.Policy())
		plans = append(plans, plan)
	}
	return plans, nil
}

// SwitchProvider resets every channel against the current provider and binds p.
// Selections are dropped; clients re-select after switching.
func (s *SurfaceService) SwitchProvider(ctx context.Context, id string, p domain.Provider) ([]domain.Plan, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanSwitchProvider,
		trace.WithAttributes(attribute.String("surface", id), attribute.String("provider", string(p))))
	defer span.End()

	p, err := domain.ParseProvider(string(p))
	if err != nil {
		return nil, err
	}
	sf, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sf.gens.Invalidate()
	sf.mu.Lock()
	defer sf.mu.Unlock()

	old := sf.recorder
	next := s.newRecorder(p)
	plans := sf.reconciler.SwitchProvider(ctx, next)
	for i := range plans {
		plans[i].SurfaceID = id
		plans[i].Generation = sf.gens.Current(plans[i].Channel)
	}
	// the teardown was recorded on the old binding
	s.publish(ctx, sf, old, "", 0)
	sf.recorder = next
	clear(sf.selections)

	slog.InfoContext(ctx, "surface provider switched", "surface", id, "from", old.Name(), "to", p)
	return plans, nil
}

func (s *SurfaceService) lookup(id string) (*surface, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sf, ok := s.surfaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSurfaceNotFound, id)
	}
	return sf, nil
}

// publish flushes rec and sends the batch. Publishing failures are logged only.
func (s *SurfaceService) publish(ctx context.Context, sf *surface, rec ports.CommandRecorder, ch domain.Channel, gen uint64) {
	cmds := rec.Flush()
	if s.publisher == nil || len(cmds) == 0 {
		return
	}
	batch := &domain.CommandBatch{
		SurfaceID:  sf.id,
		Provider:   rec.Name(),
		Channel:    ch,
		Generation: gen,
		Commands:   cmds,
		EmittedAt:  s.now().UTC(),
	}
	if err := s.publisher.PublishCommands(ctx, batch); err != nil {
		slog.WarnContext(ctx, "publish commands failed", "surface", sf.id, "commands", len(cmds), "error", err)
	}
}

func (sf *surface) info() SurfaceInfo {
	counts := make(map[domain.Channel]int, len(domain.Channels))
	for _, ch := range domain.Channels {
		counts[ch] = len(sf.selections[ch])
	}
	return SurfaceInfo{ID: sf.id, Provider: sf.recorder.Name(), CreatedAt: sf.createdAt, Selections: counts}
}

func recordPlan(plan domain.Plan, policy overlay.Policy) {
	metrics.Reconciliations.WithLabelValues(string(plan.Channel), string(policy)).Inc()
	for _, in := range plan.Instructions {
		metrics.Instructions.WithLabelValues(string(in.Kind)).Inc()
	}
	if n := len(plan.Failed); n > 0 {
		metrics.DrawFailures.WithLabelValues(string(plan.Provider)).Add(float64(n))
	}
}

// fileIDs keeps the first occurrence of every non-empty id.
func fileIDs(items []domain.SelectionItem) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.FileID == "" || seen[it.FileID] {
			continue
		}
		seen[it.FileID] = true
		ids = append(ids, it.FileID)
	}
	return ids
}
