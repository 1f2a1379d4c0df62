package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBusDeliversByType(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8)

	purchases := &Recorder{}
	everything := &Recorder{}
	bus.Subscribe(TokenPurchase, purchases)
	bus.SubscribeAll(everything)

	require.NoError(t, bus.Publish(&TokenPurchaseEvent{Buyer: solana.NewWallet().PublicKey(), SolAmount: 10, Time: 1}))
	require.NoError(t, bus.Publish(&TokenSaleEvent{TokenAmount: 5, Time: 2}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	assert.Len(t, purchases.Events(), 1)
	assert.Len(t, everything.Events(), 2)
	assert.Len(t, everything.OfType(TokenSale), 1)
	assert.Equal(t, time.Unix(2, 0).UTC(), everything.OfType(TokenSale)[0].Timestamp())
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8)
	rec := &Recorder{}
	sub := bus.Subscribe(AirdropClaimed, rec)
	sub.Unsubscribe()

	require.NoError(t, bus.PublishSync(context.Background(), &AirdropClaimedEvent{Amount: 1}))
	assert.Empty(t, rec.Events())
	assert.Empty(t, bus.Stats().Handlers)
	require.NoError(t, bus.Shutdown(context.Background()))
}

func TestBusPublishSyncJoinsErrors(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8)
	boom := errors.New("boom")
	bus.SubscribeFunc(TokenSale, func(context.Context, Event) error { return boom })

	err := bus.PublishSync(context.Background(), &TokenSaleEvent{})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, bus.Shutdown(context.Background()))
}

func TestBusRejectsAfterShutdown(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)
	require.NoError(t, bus.Shutdown(context.Background()))
	assert.ErrorIs(t, bus.Publish(&PriceCalculatedEvent{}), ErrBusClosed)
}

func TestNewCoversAllTypes(t *testing.T) {
	for _, typ := range AllTypes() {
		ev, ok := New(typ)
		require.True(t, ok, string(typ))
		assert.Equal(t, typ, ev.Type())
	}
	_, ok := New("Unknown")
	assert.False(t, ok)
}
