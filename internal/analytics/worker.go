package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/voltara/prebooking-backend/pkg/enums"
	"github.com/voltara/prebooking-backend/pkg/logger"
	"github.com/voltara/prebooking-backend/pkg/outbox"
)

// Handler processes a decoded outbox envelope delivered over Pub/Sub.
type Handler interface {
	Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error
}

// Worker drains the booking events subscription and feeds each envelope to
// the handler. Malformed messages are acked and dropped; handler failures
// nack so Pub/Sub redelivers.
type Worker struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	logg         *logger.Logger
}

// NewWorker builds the subscription drain loop.
func NewWorker(subscription *gcppubsub.Subscriber, handler Handler, logg *logger.Logger) (*Worker, error) {
	if subscription == nil {
		return nil, errors.New("booking subscription is required")
	}
	if handler == nil {
		return nil, errors.New("analytics handler is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Worker{
		subscription: subscription,
		handler:      handler,
		logg:         logg,
	}, nil
}

// Run consumes messages until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	return w.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if w.process(innerCtx, msg) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process returns true when the message should be nacked for redelivery.
func (w *Worker) process(ctx context.Context, msg *gcppubsub.Message) bool {
	logCtx := w.logg.WithField(ctx, "message_id", msg.ID)

	eventType, envelope, err := decodeMessage(msg)
	if err != nil {
		w.logg.Warn(w.logg.WithField(logCtx, "error", err.Error()), "dropping undecodable message")
		return false
	}

	logCtx = w.logg.WithFields(logCtx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if err := w.handler.Process(logCtx, eventType, *envelope); err != nil {
		w.logg.Error(logCtx, "analytics handler failed", err)
		return true
	}
	return false
}

func decodeMessage(msg *gcppubsub.Message) (enums.OutboxEventType, *outbox.PayloadEnvelope, error) {
	rawType := strings.TrimSpace(msg.Attributes["event_type"])
	eventType, err := enums.ParseOutboxEventType(rawType)
	if err != nil {
		return "", nil, fmt.Errorf("event_type: %w", err)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return "", nil, fmt.Errorf("decode payload envelope: %w", err)
	}
	if envelope.EventID == "" {
		return "", nil, fmt.Errorf("event id missing from envelope")
	}
	return eventType, &envelope, nil
}
