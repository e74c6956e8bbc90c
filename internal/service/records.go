package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/errs"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/lib/job"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/metrics"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/payload"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/repository"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Publisher enqueues background tasks. *job.JobService implements it.
type Publisher interface {
	Enqueue(ctx context.Context, task *asynq.Task) error
}

// RecordService implements list, get, create, update and delete once for every
// entity family; the descriptor argument selects the family.
type RecordService struct {
	store     repository.Store
	metrics   *metrics.Metrics
	publisher Publisher
}

// NewRecordService builds the service. m and publisher may be nil.
func NewRecordService(store repository.Store, m *metrics.Metrics, publisher Publisher) *RecordService {
	return &RecordService{
		store:     store,
		metrics:   m,
		publisher: publisher,
	}
}

// List returns the whole collection in insertion order. It never returns nil.
func (s *RecordService) List(ctx context.Context, d entity.Descriptor) ([]entity.Record, error) {
	records, err := s.store.List(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.Collection, err)
	}
	if records == nil {
		records = []entity.Record{}
	}
	return records, nil
}

// Get returns one record or a 404.
func (s *RecordService) Get(ctx context.Context, d entity.Descriptor, id int64) (entity.Record, error) {
	rec, err := s.store.Get(ctx, d, id)
	if err != nil {
		return nil, s.storeError(d, id, "fetching", err)
	}
	return rec, nil
}

// Create stores the payload under a fresh identifier. Identifiers sent by the client
// are ignored.
func (s *RecordService) Create(ctx context.Context, d entity.Descriptor, p *payload.Payload) (entity.Record, error) {
	rec, err := s.normalize(d, p)
	if err != nil {
		return nil, err
	}

	created, err := s.store.Create(ctx, d, rec)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", d.Name, err)
	}

	id, _ := created.ID(d)
	s.recorded(ctx, d, job.OperationCreate, id, created)
	return created, nil
}

// Update replaces the record with the identifier; the identifier in the payload, if
// any, is overwritten with id.
func (s *RecordService) Update(ctx context.Context, d entity.Descriptor, id int64, p *payload.Payload) (entity.Record, error) {
	rec, err := s.normalize(d, p)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.Replace(ctx, d, id, rec.WithID(d, id))
	if err != nil {
		return nil, s.storeError(d, id, "updating", err)
	}

	s.recorded(ctx, d, job.OperationUpdate, id, updated)
	return updated, nil
}

// Delete removes the record with the identifier or returns a 404.
func (s *RecordService) Delete(ctx context.Context, d entity.Descriptor, id int64) error {
	if err := s.store.Delete(ctx, d, id); err != nil {
		return s.storeError(d, id, "deleting", err)
	}

	s.recorded(ctx, d, job.OperationDelete, id, nil)
	return nil
}

// normalize converts the payload fields, leaving out the identifier: it is assigned on
// create and taken from the path on update.
func (s *RecordService) normalize(d entity.Descriptor, p *payload.Payload) (entity.Record, error) {
	fields := make(map[string]any, len(p.Fields))
	for k, v := range p.Fields {
		if k != d.IDField {
			fields[k] = v
		}
	}

	rec, err := entity.Normalize(d, fields)
	if err != nil {
		var fieldErr *entity.FieldValueError
		if errors.As(err, &fieldErr) {
			s.countInvalid(d, p.Format)
			return nil, errs.NewBadRequestError("Validation failed", true, nil, []errs.FieldError{{
				Field: fieldErr.Field,
				Error: fmt.Sprintf("must be %s", article(fieldErr.Kind)),
			}}, nil)
		}
		return nil, err
	}
	return rec, nil
}

func (s *RecordService) countInvalid(d entity.Descriptor, format payload.Format) {
	if s.metrics != nil {
		s.metrics.ValidationFailures.WithLabelValues(d.Name, string(format)).Inc()
	}
}

func (s *RecordService) storeError(d entity.Descriptor, id int64, action string, err error) error {
	if errors.Is(err, repository.ErrRecordNotFound) {
		code := errs.MakeUpperCaseWithUnderscores(d.Name + " not found")
		return errs.NewNotFoundError(fmt.Sprintf("%s %d not found", d.Title(), id), true, &code)
	}
	return fmt.Errorf("%s %s %d: %w", action, d.Name, id, err)
}

// recorded counts a successful mutation, logs it and publishes the change event.
// A failed publish is logged and otherwise ignored; the mutation already happened.
func (s *RecordService) recorded(ctx context.Context, d entity.Descriptor, op string, id int64, rec entity.Record) {
	if s.metrics != nil {
		s.metrics.RecordMutations.WithLabelValues(d.Name, op).Inc()
	}

	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("family", d.Name).
		Str("operation", op).
		Int64("id", id).
		Msg("record changed")

	if s.publisher == nil {
		return
	}

	task, err := job.NewRecordChangedTask(job.RecordChangedPayload{
		Family:     d.Name,
		ID:         id,
		Operation:  op,
		Record:     rec,
		OccurredAt: time.Now().UTC(),
	})
	if err == nil {
		err = s.publisher.Enqueue(ctx, task)
	}
	if err != nil {
		logger.Warn().Err(err).
			Str("family", d.Name).
			Int64("id", id).
			Msg("failed to publish record change")
	}
}

func article(k entity.Kind) string {
	if k == entity.Integer {
		return "an integer"
	}
	return "a " + k.String()
}
