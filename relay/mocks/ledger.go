// Package mocks holds testify mocks for the relay collaborators.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/marcelsud/request-relay/relay"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// Ledger is a mock implementation of relay.Ledger.
type Ledger struct {
	mock.Mock
}

// NewLedger creates a ledger mock that asserts its expectations on cleanup.
func NewLedger(t testingT) *Ledger {
	m := &Ledger{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Ledger) Create(ctx context.Context, raw relay.ReceivedRequest, state relay.State) (relay.Request, error) {
	args := m.Called(ctx, raw, state)
	return args.Get(0).(relay.Request), args.Error(1)
}

func (m *Ledger) SetState(ctx context.Context, id int64, state relay.State) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *Ledger) ScheduleRetry(ctx context.Context, id int64, state relay.State) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *Ledger) AppendAttempt(ctx context.Context, requestID int64, status int, body []byte) (int64, error) {
	args := m.Called(ctx, requestID, status, body)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Ledger) ThresholdReached(ctx context.Context, requestID int64, threshold int) (bool, error) {
	args := m.Called(ctx, requestID, threshold)
	return args.Bool(0), args.Error(1)
}

func (m *Ledger) ClaimDue(ctx context.Context, limit int) ([]relay.Request, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]relay.Request), args.Error(1)
}
