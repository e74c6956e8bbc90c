package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/errs"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/lib/job"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/metrics"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/payload"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/repository"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

type capturePublisher struct {
	tasks []*asynq.Task
	err   error
}

func (p *capturePublisher) Enqueue(_ context.Context, task *asynq.Task) error {
	p.tasks = append(p.tasks, task)
	return p.err
}

func (p *capturePublisher) payloads(t *testing.T) []job.RecordChangedPayload {
	t.Helper()
	out := make([]job.RecordChangedPayload, 0, len(p.tasks))
	for _, task := range p.tasks {
		var rp job.RecordChangedPayload
		if err := json.Unmarshal(task.Payload(), &rp); err != nil {
			t.Fatalf("decode task: %v", err)
		}
		out = append(out, rp)
	}
	return out
}

func newTestService(t *testing.T) (*RecordService, *capturePublisher, *metrics.Metrics) {
	t.Helper()
	store := repository.NewMemoryStore()
	_, err := store.Seed(context.Background(), entity.Product, []entity.Record{
		{"productID": int64(1), "name": "Bird seed", "price": decimal.RequireFromString("3.5")},
		{"productID": int64(2), "name": "Feeder", "price": decimal.RequireFromString("12")},
		{"productID": int64(3), "name": "Nest box", "price": decimal.RequireFromString("20")},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	pub := &capturePublisher{}
	m := metrics.New()
	return NewRecordService(store, m, pub), pub, m
}

func jsonPayload(t *testing.T, d entity.Descriptor, body string) *payload.Payload {
	t.Helper()
	p, err := payload.Decode(d, payload.MIMEApplicationJSON, []byte(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return p
}

func httpStatus(err error) int {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

func TestCreateIgnoresClientID(t *testing.T) {
	svc, pub, m := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, entity.Product, jsonPayload(t, entity.Product, `{"productID":2,"name":"bird seed","price":3.5}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id, _ := created.ID(entity.Product)
	if id == 1 || id == 2 || id == 3 {
		t.Fatalf("expected a fresh id, got %d", id)
	}

	all, _ := svc.List(ctx, entity.Product)
	if len(all) != 4 {
		t.Fatalf("expected 4 products, got %d", len(all))
	}
	if got := testutil.ToFloat64(m.RecordMutations.WithLabelValues("product", "create")); got != 1 {
		t.Fatalf("expected one counted create, got %v", got)
	}

	events := pub.payloads(t)
	if len(events) != 1 || events[0].Operation != job.OperationCreate || events[0].ID != id || events[0].Family != "product" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestCreateIgnoresOutOfRangeClientID(t *testing.T) {
	svc, _, _ := newTestService(t)

	created, err := svc.Create(context.Background(), entity.Product,
		jsonPayload(t, entity.Product, `{"productID":99999999999999999999,"name":"x","price":1}`))
	if err != nil {
		t.Fatalf("client id must be ignored, got %v", err)
	}
	if id, _ := created.ID(entity.Product); id != 4 {
		t.Fatalf("expected id 4, got %d", id)
	}
}

func TestCreateAcceptsWholeFloatQuantity(t *testing.T) {
	svc, _, _ := newTestService(t)

	created, err := svc.Create(context.Background(), entity.Sale,
		jsonPayload(t, entity.Sale, `{"salesPersonalID":1,"customerID":1,"productID":1,"quantity":2.0}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := created["quantity"]; got != int64(2) {
		t.Fatalf("expected quantity int64(2), got %#v", got)
	}
}

func TestCreateRejectsUnconvertibleField(t *testing.T) {
	svc, pub, m := newTestService(t)

	_, err := svc.Create(context.Background(), entity.Product, jsonPayload(t, entity.Product, `{"name":"x","price":"cheap"}`))
	if httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	var httpErr *errs.HTTPError
	errors.As(err, &httpErr)
	if len(httpErr.Errors) != 1 || httpErr.Errors[0].Field != "price" || httpErr.Errors[0].Error != "must be a decimal" {
		t.Fatalf("unexpected field errors %+v", httpErr.Errors)
	}
	if len(pub.tasks) != 0 {
		t.Fatalf("rejected payload must not publish")
	}
	if got := testutil.ToFloat64(m.ValidationFailures.WithLabelValues("product", "json")); got != 1 {
		t.Fatalf("expected one validation failure, got %v", got)
	}
}

func TestUpdateFixesIDToPath(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	updated, err := svc.Update(ctx, entity.Product, 2, jsonPayload(t, entity.Product, `{"productID":99,"name":"Big feeder","price":15}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if id, _ := updated.ID(entity.Product); id != 2 {
		t.Fatalf("expected id 2, got %d", id)
	}

	all, _ := svc.List(ctx, entity.Product)
	if all[1]["name"] != "Big feeder" {
		t.Fatalf("expected record replaced in place, got %#v", all)
	}
	if _, err := svc.Get(ctx, entity.Product, 99); httpStatus(err) != http.StatusNotFound {
		t.Fatalf("client id must not create a record, got %v", err)
	}
}

func TestUpdateUnknownIsNotFound(t *testing.T) {
	svc, pub, _ := newTestService(t)

	_, err := svc.Update(context.Background(), entity.Product, 42, jsonPayload(t, entity.Product, `{"name":"x","price":1}`))
	var httpErr *errs.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusNotFound || httpErr.Code != "PRODUCT_NOT_FOUND" {
		t.Fatalf("expected PRODUCT_NOT_FOUND, got %v", err)
	}
	if len(pub.tasks) != 0 {
		t.Fatalf("failed update must not publish")
	}
}

func TestDeleteTwice(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Delete(ctx, entity.Product, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, entity.Product, 2); httpStatus(err) != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %v", err)
	}

	all, _ := svc.List(ctx, entity.Product)
	var ids []int64
	for _, rec := range all {
		id, _ := rec.ID(entity.Product)
		ids = append(ids, id)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("expected ids [1 3], got %v", ids)
	}

	events := pub.payloads(t)
	if len(events) != 1 || events[0].Operation != job.OperationDelete || events[0].Record != nil {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestListEmptyFamilyIsNotNil(t *testing.T) {
	svc, _, _ := newTestService(t)
	recs, err := svc.List(context.Background(), entity.Sale)
	if err != nil || recs == nil || len(recs) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v, %v", recs, err)
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	store := repository.NewMemoryStore()
	pub := &capturePublisher{err: errors.New("redis down")}
	svc := NewRecordService(store, nil, pub)

	_, err := svc.Create(context.Background(), entity.Customer, jsonPayload(t, entity.Customer, `{"firstName":"Ada","lastName":"Lovelace"}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(pub.tasks) != 1 {
		t.Fatalf("expected an enqueue attempt")
	}
}
