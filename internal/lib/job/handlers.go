package job

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/lib/email"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// saleNotifier is implemented by *email.Client.
type saleNotifier interface {
	SendSaleNotification(ctx context.Context, to string, sale email.SaleNotification) error
}

// InitHandlers prepares the dependencies of the task handlers. Sale notifications
// are only sent when both a Resend API key and a recipient are configured.
func (j *JobService) InitHandlers(cfg *config.Config, logger *zerolog.Logger) {
	if cfg.Integration.ResendAPIKey != "" && cfg.Integration.SalesNotifyEmail != "" {
		j.notifier = email.NewClient(cfg, logger)
		j.notifyTo = cfg.Integration.SalesNotifyEmail
	}
}

func decodeRecordChanged(t *asynq.Task) (RecordChangedPayload, error) {
	var p RecordChangedPayload
	dec := json.NewDecoder(bytes.NewReader(t.Payload()))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("failed to unmarshal record changed payload: %w", err)
	}
	return p, nil
}

// handleRecordChangedTask writes an audit line for every mutation and notifies the
// sales mailbox about new sales.
func (j *JobService) handleRecordChangedTask(ctx context.Context, t *asynq.Task) error {
	p, err := decodeRecordChanged(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	j.logger.Info().
		Str("type", TaskRecordChanged).
		Str("family", p.Family).
		Int64("id", p.ID).
		Str("operation", p.Operation).
		Time("occurred_at", p.OccurredAt).
		Msg("record changed")

	if p.Family != entity.Sale.Name || p.Operation != OperationCreate || j.notifier == nil {
		return nil
	}

	sale, err := entity.Normalize(entity.Sale, p.Record)
	if err != nil {
		return fmt.Errorf("invalid sale in task: %v: %w", err, asynq.SkipRetry)
	}
	field := func(name string) int64 {
		v, _ := sale[name].(int64)
		return v
	}

	if err := j.notifier.SendSaleNotification(ctx, j.notifyTo, email.SaleNotification{
		SalesID:         p.ID,
		SalesPersonalID: field("salesPersonalID"),
		CustomerID:      field("customerID"),
		ProductID:       field("productID"),
		Quantity:        field("quantity"),
	}); err != nil {
		j.logger.Error().
			Str("type", TaskRecordChanged).
			Int64("sales_id", p.ID).
			Err(err).
			Msg("Failed to send sale notification")
		return err
	}

	j.logger.Info().
		Str("type", TaskRecordChanged).
		Int64("sales_id", p.ID).
		Msg("Successfully sent sale notification")
	return nil
}
