package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/idgate/internal/account/usecase"
	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"github.com/shandysiswandi/idgate/internal/pkg/messaging"
	"github.com/shandysiswandi/idgate/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishAccountCreated(ctx context.Context, msg usecase.AccountCreatedEvent) error {
	return m.publish(ctx, "PublishAccountCreated", event.AccountCreatedDestination, msg.IdentityKey, event.AccountCreatedMessage{
		AccountID:   msg.AccountID,
		IdentityKey: msg.IdentityKey,
		CreatedAt:   msg.CreatedAt,
	})
}

func (m *Messaging) PublishTOTPEnabled(ctx context.Context, msg usecase.TOTPEnabledEvent) error {
	return m.publish(ctx, "PublishTOTPEnabled", event.AccountTOTPEnabledDestination, msg.IdentityKey, event.AccountTOTPEnabledMessage{
		AccountID:   msg.AccountID,
		IdentityKey: msg.IdentityKey,
		EnabledAt:   msg.EnabledAt,
	})
}

func (m *Messaging) publish(ctx context.Context, span, destination, key string, payload any) error {
	ctx, sp := m.ins.Tracer("account.outbound.mq").Start(ctx, span)
	defer sp.End()

	body, err := json.Marshal(payload)
	if err != nil {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, destination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(key),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
