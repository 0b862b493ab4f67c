package relay_test

import (
	"context"
	"errors"
	"testing"

	"github.com/marcelsud/request-relay/origin"
	"github.com/marcelsud/request-relay/relay"
	"github.com/marcelsud/request-relay/relay/mocks"
)

func TestSchedulerSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("claimed requests re-enter at origin resolution", func(t *testing.T) {
		ledger := mocks.NewLedger(t)
		resolver := mocks.NewResolver(t)
		forwarder := mocks.NewForwarder(t)
		alerts := mocks.NewNotifier(t)
		deliverer := relay.NewDeliverer(ledger, resolver, forwarder, alerts, nil)
		scheduler := relay.NewScheduler(ledger, deliverer, 0, 0, nil)

		_, req := testRequest()
		o := testOrigin(nil)

		ledger.On("ClaimDue", ctx, 50).Return([]relay.Request{req}, nil).Once()
		// no Enqueued write here: the claim already flipped the state
		resolver.On("Resolve", "a.example").Return(o, true).Once()
		forwarder.On("Forward", ctx, o, req).Return(relay.Response{Status: 200, Body: []byte("ok")}, nil).Once()
		ledger.On("AppendAttempt", ctx, req.ID, 200, []byte("ok")).Return(int64(2), nil).Once()
		ledger.On("SetState", ctx, req.ID, relay.Completed).Return(nil).Once()

		scheduler.Sweep(ctx)
	})

	t.Run("a request unmapped since its failure is skipped", func(t *testing.T) {
		ledger := mocks.NewLedger(t)
		resolver := mocks.NewResolver(t)
		forwarder := mocks.NewForwarder(t)
		alerts := mocks.NewNotifier(t)
		deliverer := relay.NewDeliverer(ledger, resolver, forwarder, alerts, nil)
		scheduler := relay.NewScheduler(ledger, deliverer, 0, 0, nil)

		_, req := testRequest()

		ledger.On("ClaimDue", ctx, 50).Return([]relay.Request{req}, nil).Once()
		resolver.On("Resolve", "a.example").Return(origin.Origin{}, false).Once()
		ledger.On("SetState", ctx, req.ID, relay.Skipped).Return(nil).Once()

		scheduler.Sweep(ctx)
	})

	t.Run("claim failure halts the sweep", func(t *testing.T) {
		ledger := mocks.NewLedger(t)
		resolver := mocks.NewResolver(t)
		forwarder := mocks.NewForwarder(t)
		alerts := mocks.NewNotifier(t)
		deliverer := relay.NewDeliverer(ledger, resolver, forwarder, alerts, nil)
		scheduler := relay.NewScheduler(ledger, deliverer, 0, 0, nil)

		ledger.On("ClaimDue", ctx, 50).Return(nil, errors.New("db down")).Once()

		scheduler.Sweep(ctx)
	})

	t.Run("empty sweep is a no-op", func(t *testing.T) {
		ledger := mocks.NewLedger(t)
		resolver := mocks.NewResolver(t)
		forwarder := mocks.NewForwarder(t)
		alerts := mocks.NewNotifier(t)
		deliverer := relay.NewDeliverer(ledger, resolver, forwarder, alerts, nil)
		scheduler := relay.NewScheduler(ledger, deliverer, 0, 0, nil)

		ledger.On("ClaimDue", ctx, 50).Return([]relay.Request{}, nil).Once()

		scheduler.Sweep(ctx)
	})
}
