package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/turbinemap/internal/core/domain"
	"github.com/samirrijal/turbinemap/internal/core/ports"
	"github.com/samirrijal/turbinemap/internal/pkg/logging"
	"github.com/samirrijal/turbinemap/internal/pkg/metrics"
	"github.com/samirrijal/turbinemap/internal/pkg/telemetry"
	"github.com/samirrijal/turbinemap/internal/pkg/validation"
)

const (
	DefaultMaxResults = 1000
	DefaultNearest    = 3
	DefaultMaxNearest = 10

	opBBox    = "bbox"
	opNearest = "nearest"
	opStats   = "stats"
)

// QueryLimits bounds every query the service answers.
type QueryLimits struct {
	MaxResults int
	MaxNearest int
	CacheTTL   int // seconds; 0 disables caching
}

func (l QueryLimits) withDefaults() QueryLimits {
	if l.MaxResults <= 0 {
		l.MaxResults = DefaultMaxResults
	}
	if l.MaxNearest <= 0 {
		l.MaxNearest = DefaultMaxNearest
	}
	if l.CacheTTL < 0 {
		l.CacheTTL = 0
	}
	return l
}

// TurbineService answers bounding-box and nearest-neighbour queries over the
// turbine dataset. It is safe for concurrent use.
type TurbineService struct {
	store  ports.TurbineRepository
	cache  ports.CacheService
	limits QueryLimits

	// generation namespaces cache keys; a dataset change moves it forward.
	generation atomic.Pointer[string]
	bumps      atomic.Uint64
}

// NewTurbineService creates a new TurbineService. cache may be nil.
func NewTurbineService(store ports.TurbineRepository, cache ports.CacheService, limits QueryLimits) *TurbineService {
	s := &TurbineService{store: store, cache: cache, limits: limits.withDefaults()}
	gen := "0"
	s.generation.Store(&gen)
	return s
}

// Limits returns the effective limits.
func (s *TurbineService) Limits() QueryLimits { return s.limits }

// InBoundingBox returns up to limit turbines inside box, edges included,
// ordered by ascending id. Reversed corners are swapped. A limit outside
// (0, MaxResults] is replaced by MaxResults.
func (s *TurbineService) InBoundingBox(ctx context.Context, box domain.BoundingBox, limit int) ([]domain.Turbine, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "TurbineService.InBoundingBox")
	defer span.End()
	defer observe(opBBox, time.Now())

	if err := validateBox(box); err != nil {
		return nil, s.fail(ctx, span, opBBox, err)
	}
	box = box.Normalize()
	if limit <= 0 || limit > s.limits.MaxResults {
		limit = s.limits.MaxResults
	}
	span.SetAttributes(
		attribute.String(telemetry.AttrQueryKind, opBBox),
		attribute.String(telemetry.AttrQueryBox, box.String()),
		attribute.Int(telemetry.AttrQueryLimit, limit),
	)

	cacheKey := fmt.Sprintf("turbines:%s:bbox:%s:%d", s.gen(), box, limit)
	var turbines []domain.Turbine
	if s.fromCache(ctx, span, opBBox, cacheKey, &turbines) {
		return turbines, nil
	}

	turbines, err := s.store.ContainedIn(ctx, box, limit)
	if err != nil {
		return nil, s.fail(ctx, span, opBBox, storeError(opBBox, err))
	}

	turbines = uniqueByID(turbines)
	sort.Slice(turbines, func(i, j int) bool { return turbines[i].ID < turbines[j].ID })
	if len(turbines) > limit {
		turbines = turbines[:limit]
	}

	span.SetAttributes(attribute.Int(telemetry.AttrResults, len(turbines)))
	metrics.QueryResults.WithLabelValues(opBBox).Observe(float64(len(turbines)))
	s.toCache(ctx, cacheKey, turbines)
	return turbines, nil
}

// Nearest returns up to k turbines closest to p, ordered by ascending
// distance with id as tie-break. k <= 0 means DefaultNearest.
func (s *TurbineService) Nearest(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "TurbineService.Nearest")
	defer span.End()
	defer observe(opNearest, time.Now())

	if err := validatePoint(p); err != nil {
		return nil, s.fail(ctx, span, opNearest, err)
	}
	switch {
	case k <= 0:
		k = DefaultNearest
	case k > s.limits.MaxNearest:
		k = s.limits.MaxNearest
	}
	span.SetAttributes(
		attribute.String(telemetry.AttrQueryKind, opNearest),
		attribute.Int(telemetry.AttrQueryLimit, k),
	)

	cacheKey := fmt.Sprintf("turbines:%s:nearest:%.6f,%.6f:%d", s.gen(), p.Lon, p.Lat, k)
	var nearby []domain.NearbyTurbine
	if s.fromCache(ctx, span, opNearest, cacheKey, &nearby) {
		return nearby, nil
	}

	nearby, err := s.store.NearestTo(ctx, p, k)
	if err != nil {
		return nil, s.fail(ctx, span, opNearest, storeError(opNearest, err))
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		if nearby[i].Distance != nearby[j].Distance {
			return nearby[i].Distance < nearby[j].Distance
		}
		return nearby[i].ID < nearby[j].ID
	})
	if len(nearby) > k {
		nearby = nearby[:k]
	}
	if nearby == nil {
		nearby = []domain.NearbyTurbine{}
	}

	span.SetAttributes(attribute.Int(telemetry.AttrResults, len(nearby)))
	metrics.QueryResults.WithLabelValues(opNearest).Observe(float64(len(nearby)))
	s.toCache(ctx, cacheKey, nearby)
	return nearby, nil
}

// Stats returns the dataset summary.
func (s *TurbineService) Stats(ctx context.Context) (*domain.DatasetStats, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "TurbineService.Stats")
	defer span.End()
	defer observe(opStats, time.Now())

	cacheKey := fmt.Sprintf("turbines:%s:stats", s.gen())
	var stats domain.DatasetStats
	if s.fromCache(ctx, span, opStats, cacheKey, &stats) {
		return &stats, nil
	}

	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, s.fail(ctx, span, opStats, storeError(opStats, err))
	}
	s.toCache(ctx, cacheKey, st)
	return st, nil
}

// InvalidateCache moves the cache generation forward so entries written
// before the call are never read again. They expire by TTL.
func (s *TurbineService) InvalidateCache() {
	gen := strconv.FormatUint(s.bumps.Add(1), 10)
	s.generation.Store(&gen)
	metrics.DatasetInvalidations.Inc()
}

// OnDatasetChanged handles a dataset-change notification. A non-empty
// version becomes the new generation so replicas share cache keys.
func (s *TurbineService) OnDatasetChanged(ctx context.Context, version string) error {
	if version == "" {
		s.InvalidateCache()
	} else {
		gen := "v" + version
		s.generation.Store(&gen)
		metrics.DatasetInvalidations.Inc()
	}
	logging.FromContext(ctx).Info("dataset changed, query cache invalidated", "generation", s.gen())
	return nil
}

func (s *TurbineService) gen() string {
	return *s.generation.Load()
}

func (s *TurbineService) fromCache(ctx context.Context, span trace.Span, op, key string, dst any) bool {
	if s.cache == nil || s.limits.CacheTTL == 0 {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, true))
	return true
}

func (s *TurbineService) toCache(ctx context.Context, key string, v any) {
	if s.cache == nil || s.limits.CacheTTL == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.limits.CacheTTL); err != nil {
		logging.FromContext(ctx).Debug("cache write failed", "key", key, "error", err)
	}
}

// fail records err on the span and in metrics. Store failures are logged
// with their cause; the returned error never carries driver text.
func (s *TurbineService) fail(ctx context.Context, span trace.Span, op string, err error) error {
	kind := domain.ErrorKind(err)
	metrics.QueryErrors.WithLabelValues(op, kind).Inc()
	span.SetStatus(codes.Error, kind)
	var se *storeFailure
	if errors.As(err, &se) {
		span.RecordError(se.cause)
		logging.FromContext(ctx).Error("spatial store query failed", "operation", op, "error", se.cause)
		return se.public
	}
	return err
}

type storeFailure struct {
	public error
	cause  error
}

func (e *storeFailure) Error() string { return e.public.Error() }
func (e *storeFailure) Unwrap() error { return e.public }

func storeError(op string, cause error) error {
	return &storeFailure{
		public: fmt.Errorf("%s query: %w", op, domain.ErrStoreUnavailable),
		cause:  cause,
	}
}

func validateBox(b domain.BoundingBox) error {
	if !b.IsFinite() {
		return fmt.Errorf("%w: bounding box coordinates must be finite", domain.ErrInvalidArgument)
	}
	if verr := validation.Struct(&b); verr != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, verr.Error())
	}
	return nil
}

func validatePoint(p domain.GeoPoint) error {
	if !p.IsFinite() {
		return fmt.Errorf("%w: coordinates must be finite", domain.ErrInvalidArgument)
	}
	if verr := validation.Struct(&p); verr != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, verr.Error())
	}
	return nil
}

func uniqueByID(in []domain.Turbine) []domain.Turbine {
	out := make([]domain.Turbine, 0, len(in))
	index := make(map[int64]int, len(in))
	for _, t := range in {
		if i, ok := index[t.ID]; ok {
			out[i] = t
			continue
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}

func observe(op string, start time.Time) {
	metrics.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
