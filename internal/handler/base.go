package handler

import (
	"time"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/middleware"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/payload"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/server"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// Handler is the base handler type that holds shared application dependencies.
type Handler struct {
	server *server.Server
}

// NewHandler constructs a base Handler.
func NewHandler(s *server.Server) Handler {
	return Handler{server: s}
}

// HandlerFunc is a typed endpoint: it receives a bound and validated request and
// returns a response or an error.
type HandlerFunc[Req validation.Validatable, Res any] func(c echo.Context, req Req) (Res, error)

// RequestFactory returns a fresh request value for every call. Requests are mutated
// by binding, so one value must never be shared between concurrent requests.
type RequestFactory[Req validation.Validatable] func() Req

// ResponseHandler defines how a successful handler result is written to the HTTP
// response and which observability attributes it adds.
type ResponseHandler interface {
	Handle(c echo.Context, result interface{}) error

	// GetOperation names the handler type in logs.
	GetOperation() string

	AddAttributes(txn *newrelic.Transaction, result interface{})
}

// JSONResponseHandler writes JSON responses with a given status code.
type JSONResponseHandler struct {
	status int
}

func (h JSONResponseHandler) Handle(c echo.Context, result interface{}) error {
	return c.JSON(h.status, result)
}

func (h JSONResponseHandler) GetOperation() string {
	return "handler"
}

func (h JSONResponseHandler) AddAttributes(txn *newrelic.Transaction, result interface{}) {
	if records, ok := result.([]entity.Record); ok && txn != nil {
		txn.AddAttribute("response.records", len(records))
	}
}

// RecordResult is a single record plus the format it must be written in.
type RecordResult struct {
	Format     payload.Format
	Descriptor entity.Descriptor
	Record     entity.Record
}

// RecordResponseHandler writes a RecordResult as JSON or XML.
type RecordResponseHandler struct {
	status int
}

func (h RecordResponseHandler) Handle(c echo.Context, result interface{}) error {
	res := result.(RecordResult)
	body, err := payload.Encode(res.Format, res.Descriptor, res.Record)
	if err != nil {
		return err
	}
	return c.Blob(h.status, res.Format.ContentType(), body)
}

func (h RecordResponseHandler) GetOperation() string {
	return "handler_record"
}

func (h RecordResponseHandler) AddAttributes(txn *newrelic.Transaction, result interface{}) {
	if txn == nil {
		return
	}
	if res, ok := result.(RecordResult); ok {
		txn.AddAttribute("record.family", res.Descriptor.Name)
		txn.AddAttribute("record.format", string(res.Format))
		if id, ok := res.Record.ID(res.Descriptor); ok {
			txn.AddAttribute("record.id", id)
		}
	}
}

// handleRequest is the shared execution pipeline for all handlers. It centralizes
// request binding and validation, structured logging, New Relic attributes, timing
// and response writing.
func handleRequest[Req validation.Validatable](
	c echo.Context,
	req Req,
	handler func(c echo.Context, req Req) (interface{}, error),
	responseHandler ResponseHandler,
) error {
	start := time.Now()
	method := c.Request().Method
	route := c.Path()

	txn := newrelic.FromContext(c.Request().Context())
	if txn != nil {
		txn.AddAttribute("handler.name", route)
		responseHandler.AddAttributes(txn, nil)
	}

	logger := middleware.GetLogger(c).With().
		Str("operation", responseHandler.GetOperation()).
		Str("method", method).
		Str("route", route).
		Logger()

	logger.Info().Msg("handling request")

	validationStart := time.Now()
	if err := validation.BindAndValidate(c, req); err != nil {
		validationDuration := time.Since(validationStart)

		logger.Warn().
			Err(err).
			Dur("validation_duration", validationDuration).
			Msg("request validation failed")

		if txn != nil {
			txn.NoticeError(nrpkgerrors.Wrap(err))
			txn.AddAttribute("validation.status", "failed")
			txn.AddAttribute("validation.duration_ms", validationDuration.Milliseconds())
		}

		return err
	}

	validationDuration := time.Since(validationStart)
	if txn != nil {
		txn.AddAttribute("validation.status", "success")
		txn.AddAttribute("validation.duration_ms", validationDuration.Milliseconds())
	}

	logger.Debug().
		Dur("validation_duration", validationDuration).
		Msg("request validation successful")

	handlerStart := time.Now()
	result, err := handler(c, req)
	handlerDuration := time.Since(handlerStart)

	if err != nil {
		totalDuration := time.Since(start)

		logger.Error().
			Err(err).
			Dur("handler_duration", handlerDuration).
			Dur("total_duration", totalDuration).
			Msg("handler execution failed")

		if txn != nil {
			txn.NoticeError(nrpkgerrors.Wrap(err))
			txn.AddAttribute("handler.status", "error")
			txn.AddAttribute("handler.duration_ms", handlerDuration.Milliseconds())
			txn.AddAttribute("total.duration_ms", totalDuration.Milliseconds())
		}
		return err
	}

	totalDuration := time.Since(start)

	if txn != nil {
		txn.AddAttribute("handler.status", "success")
		txn.AddAttribute("handler.duration_ms", handlerDuration.Milliseconds())
		txn.AddAttribute("total.duration_ms", totalDuration.Milliseconds())
		responseHandler.AddAttributes(txn, result)
	}

	logger.Info().
		Dur("handler_duration", handlerDuration).
		Dur("validation_duration", validationDuration).
		Dur("total_duration", totalDuration).
		Msg("request completed successfully")

	return responseHandler.Handle(c, result)
}

// Handle wraps a handler with binding, validation, logging and tracing and writes
// the result as JSON.
func Handle[Req validation.Validatable, Res any](
	h Handler,
	handler HandlerFunc[Req, Res],
	status int,
	newReq RequestFactory[Req],
) echo.HandlerFunc {
	return func(c echo.Context) error {
		return handleRequest(c, newReq(), func(c echo.Context, req Req) (interface{}, error) {
			return handler(c, req)
		}, JSONResponseHandler{status: status})
	}
}

// HandleRecord is Handle for endpoints answering with a single record in the format
// of the request.
func HandleRecord[Req validation.Validatable](
	h Handler,
	handler HandlerFunc[Req, RecordResult],
	status int,
	newReq RequestFactory[Req],
) echo.HandlerFunc {
	return func(c echo.Context) error {
		return handleRequest(c, newReq(), func(c echo.Context, req Req) (interface{}, error) {
			return handler(c, req)
		}, RecordResponseHandler{status: status})
	}
}
