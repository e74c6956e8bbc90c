package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/errs"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/metrics"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/payload"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/schema"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/server"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/service"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RecordHandler serves the collection of one entity family.
type RecordHandler struct {
	Handler
	descriptor entity.Descriptor
	records    *service.RecordService
}

func NewRecordHandler(s *server.Server, d entity.Descriptor, records *service.RecordService) *RecordHandler {
	return &RecordHandler{
		Handler:    NewHandler(s),
		descriptor: d,
		records:    records,
	}
}

// Descriptor returns the family served by the handler.
func (h *RecordHandler) Descriptor() entity.Descriptor {
	return h.descriptor
}

// ListRecordsRequest has no parameters.
type ListRecordsRequest struct{}

func (r *ListRecordsRequest) Bind(echo.Context) error { return nil }
func (r *ListRecordsRequest) Validate() error         { return nil }

// RecordIDRequest addresses one record by its path identifier.
type RecordIDRequest struct {
	ID int64
}

func (r *RecordIDRequest) Bind(c echo.Context) error {
	id, err := entity.ParseID(c.Param("id"))
	if err != nil {
		return errs.NewBadRequestError(fmt.Sprintf("Invalid identifier %q", c.Param("id")), true, nil, nil, nil)
	}
	r.ID = id
	return nil
}

func (r *RecordIDRequest) Validate() error { return nil }

// RecordPayloadRequest carries a record body for create (no path id) or update.
type RecordPayloadRequest struct {
	ID      int64
	Payload *payload.Payload

	withID     bool
	descriptor entity.Descriptor
	schemas    *schema.Validator
	metrics    *metrics.Metrics
	ctx        context.Context
}

func (r *RecordPayloadRequest) Bind(c echo.Context) error {
	r.ctx = c.Request().Context()

	if r.withID {
		id, err := entity.ParseID(c.Param("id"))
		if err != nil {
			return errs.NewBadRequestError(fmt.Sprintf("Invalid identifier %q", c.Param("id")), true, nil, nil, nil)
		}
		r.ID = id
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	p, err := payload.Decode(r.descriptor, contentType, body)
	if err != nil {
		r.countInvalid(payload.FormatOf(contentType))
		return err
	}
	r.Payload = p
	return nil
}

// Validate checks the raw payload against the schema of its format.
func (r *RecordPayloadRequest) Validate() error {
	err := r.schemas.Validate(r.ctx, r.descriptor, r.Payload)
	if err == nil {
		return nil
	}
	r.countInvalid(r.Payload.Format)

	var loadErr *schema.LoadError
	if errors.As(err, &loadErr) {
		zerolog.Ctx(r.ctx).Error().Err(err).
			Str("family", r.descriptor.Name).
			Msg("schema unavailable, rejecting payload")
		return validation.CustomValidationErrors{{Field: r.descriptor.Name, Message: "schema unavailable"}}
	}

	var schemaErr *schema.ValidationError
	if errors.As(err, &schemaErr) {
		out := make(validation.CustomValidationErrors, 0, len(schemaErr.Reasons))
		for _, reason := range schemaErr.Reasons {
			out = append(out, validation.CustomValidationError{Field: reason.Field, Message: reason.Message})
		}
		return out
	}
	return err
}

func (r *RecordPayloadRequest) countInvalid(format payload.Format) {
	if r.metrics != nil {
		r.metrics.ValidationFailures.WithLabelValues(r.descriptor.Name, string(format)).Inc()
	}
}

// DeletedResponse acknowledges a delete.
type DeletedResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *RecordHandler) newListRequest() *ListRecordsRequest {
	return &ListRecordsRequest{}
}

func (h *RecordHandler) newIDRequest() *RecordIDRequest {
	return &RecordIDRequest{}
}

func (h *RecordHandler) newCreateRequest() *RecordPayloadRequest {
	return &RecordPayloadRequest{
		descriptor: h.descriptor,
		schemas:    h.server.Schemas,
		metrics:    h.server.Metrics,
	}
}

func (h *RecordHandler) newUpdateRequest() *RecordPayloadRequest {
	req := h.newCreateRequest()
	req.withID = true
	return req
}

// List returns the whole collection as a JSON array.
func (h *RecordHandler) List() echo.HandlerFunc {
	return Handle(h.Handler, func(c echo.Context, _ *ListRecordsRequest) ([]entity.Record, error) {
		return h.records.List(c.Request().Context(), h.descriptor)
	}, http.StatusOK, h.newListRequest)
}

// Get returns one record, as XML when the client asks for it and JSON otherwise.
func (h *RecordHandler) Get() echo.HandlerFunc {
	return HandleRecord(h.Handler, func(c echo.Context, req *RecordIDRequest) (RecordResult, error) {
		rec, err := h.records.Get(c.Request().Context(), h.descriptor, req.ID)
		if err != nil {
			return RecordResult{}, err
		}
		return RecordResult{Format: acceptedFormat(c), Descriptor: h.descriptor, Record: rec}, nil
	}, http.StatusOK, h.newIDRequest)
}

// Create stores a new record and answers with it in the request's format.
func (h *RecordHandler) Create() echo.HandlerFunc {
	return HandleRecord(h.Handler, func(c echo.Context, req *RecordPayloadRequest) (RecordResult, error) {
		rec, err := h.records.Create(c.Request().Context(), h.descriptor, req.Payload)
		if err != nil {
			return RecordResult{}, err
		}
		return RecordResult{Format: req.Payload.Format, Descriptor: h.descriptor, Record: rec}, nil
	}, http.StatusOK, h.newCreateRequest)
}

// Update replaces the record at the path identifier.
func (h *RecordHandler) Update() echo.HandlerFunc {
	return HandleRecord(h.Handler, func(c echo.Context, req *RecordPayloadRequest) (RecordResult, error) {
		rec, err := h.records.Update(c.Request().Context(), h.descriptor, req.ID, req.Payload)
		if err != nil {
			return RecordResult{}, err
		}
		return RecordResult{Format: req.Payload.Format, Descriptor: h.descriptor, Record: rec}, nil
	}, http.StatusOK, h.newUpdateRequest)
}

// Delete removes the record at the path identifier.
func (h *RecordHandler) Delete() echo.HandlerFunc {
	return Handle(h.Handler, func(c echo.Context, req *RecordIDRequest) (DeletedResponse, error) {
		if err := h.records.Delete(c.Request().Context(), h.descriptor, req.ID); err != nil {
			return DeletedResponse{}, err
		}
		return DeletedResponse{Deleted: req.ID}, nil
	}, http.StatusOK, h.newIDRequest)
}

// acceptedFormat picks XML only when the first Accept entry is an XML media type.
func acceptedFormat(c echo.Context) payload.Format {
	accept := c.Request().Header.Get(echo.HeaderAccept)
	first, _, _ := strings.Cut(accept, ",")
	if strings.TrimSpace(first) == "" {
		return payload.FormatJSON
	}
	return payload.FormatOf(first)
}
