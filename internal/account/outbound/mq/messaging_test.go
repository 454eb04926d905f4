package mq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shandysiswandi/idgate/internal/account/usecase"
	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"github.com/shandysiswandi/idgate/internal/pkg/messaging"
	"github.com/shandysiswandi/idgate/internal/shared/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessaging_PublishAccountCreated(t *testing.T) {
	pub := messaging.NewMemory()
	m := NewMessaging(pub, instrument.NewNoop())
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	ctx := instrument.SetCorrelationID(context.Background(), "cid-42")
	require.NoError(t, m.PublishAccountCreated(ctx, usecase.AccountCreatedEvent{
		AccountID: 9, IdentityKey: "bob@example.com", CreatedAt: at,
	}))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, event.AccountCreatedDestination, msgs[0].Destination)
	assert.Equal(t, []byte("bob@example.com"), msgs[0].Message.Key)
	assert.Equal(t, []messaging.Header{{Key: "cID", Value: []byte("cid-42")}}, msgs[0].Message.Headers)

	var got event.AccountCreatedMessage
	require.NoError(t, json.Unmarshal(msgs[0].Message.Body, &got))
	assert.Equal(t, event.AccountCreatedMessage{AccountID: 9, IdentityKey: "bob@example.com", CreatedAt: at}, got)
}

func TestMessaging_PublishTOTPEnabled(t *testing.T) {
	pub := messaging.NewMemory()
	m := NewMessaging(pub, instrument.NewNoop())

	require.NoError(t, m.PublishTOTPEnabled(context.Background(), usecase.TOTPEnabledEvent{
		AccountID: 9, IdentityKey: "bob@example.com", EnabledAt: time.Unix(0, 0).UTC(),
	}))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, event.AccountTOTPEnabledDestination, msgs[0].Destination)
	assert.NotContains(t, string(msgs[0].Message.Body), "secret")
}

func TestMessaging_PublishError(t *testing.T) {
	pub := messaging.NewMemory()
	require.NoError(t, pub.Close())

	m := NewMessaging(pub, instrument.NewNoop())
	assert.Error(t, m.PublishAccountCreated(context.Background(), usecase.AccountCreatedEvent{IdentityKey: "bob@example.com"}))
}
