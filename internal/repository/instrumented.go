package repository

import (
	"context"
	"time"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/metrics"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

// instrumentedStore times every call into the wrapped store. It records a New Relic
// segment, observes the store latency histogram and warns about slow calls on the
// request logger.
type instrumentedStore struct {
	inner   Store
	driver  string
	slow    time.Duration
	metrics *metrics.Metrics
}

// Instrument wraps store. m may be nil; slow <= 0 disables slow call logging.
func Instrument(store Store, driver string, slow time.Duration, m *metrics.Metrics) Store {
	return &instrumentedStore{inner: store, driver: driver, slow: slow, metrics: m}
}

func (s *instrumentedStore) observe(ctx context.Context, op string, d entity.Descriptor) func() {
	start := time.Now()
	var seg *newrelic.Segment
	if txn := newrelic.FromContext(ctx); txn != nil {
		seg = txn.StartSegment("store/" + s.driver + "/" + op)
	}

	return func() {
		elapsed := time.Since(start)
		seg.End()
		if s.metrics != nil {
			s.metrics.StoreDuration.WithLabelValues(s.driver, op).Observe(elapsed.Seconds())
		}
		if s.slow > 0 && elapsed > s.slow {
			zerolog.Ctx(ctx).Warn().
				Str("driver", s.driver).
				Str("operation", op).
				Str("family", d.Name).
				Dur("elapsed", elapsed).
				Msg("slow store call")
		}
	}
}

func (s *instrumentedStore) List(ctx context.Context, d entity.Descriptor) ([]entity.Record, error) {
	defer s.observe(ctx, "list", d)()
	return s.inner.List(ctx, d)
}

func (s *instrumentedStore) Get(ctx context.Context, d entity.Descriptor, id int64) (entity.Record, error) {
	defer s.observe(ctx, "get", d)()
	return s.inner.Get(ctx, d, id)
}

func (s *instrumentedStore) Create(ctx context.Context, d entity.Descriptor, rec entity.Record) (entity.Record, error) {
	defer s.observe(ctx, "create", d)()
	return s.inner.Create(ctx, d, rec)
}

func (s *instrumentedStore) Replace(ctx context.Context, d entity.Descriptor, id int64, rec entity.Record) (entity.Record, error) {
	defer s.observe(ctx, "replace", d)()
	return s.inner.Replace(ctx, d, id, rec)
}

func (s *instrumentedStore) Delete(ctx context.Context, d entity.Descriptor, id int64) error {
	defer s.observe(ctx, "delete", d)()
	return s.inner.Delete(ctx, d, id)
}

func (s *instrumentedStore) Seed(ctx context.Context, d entity.Descriptor, recs []entity.Record) (bool, error) {
	defer s.observe(ctx, "seed", d)()
	return s.inner.Seed(ctx, d, recs)
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}
