package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/marcelsud/request-relay/origin"
	"github.com/marcelsud/request-relay/relay"
)

// Resolver is a mock implementation of relay.Resolver.
type Resolver struct {
	mock.Mock
}

// NewResolver creates a resolver mock that asserts its expectations on cleanup.
func NewResolver(t testingT) *Resolver {
	m := &Resolver{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Resolver) Resolve(authority string) (origin.Origin, bool) {
	args := m.Called(authority)
	return args.Get(0).(origin.Origin), args.Bool(1)
}

// Forwarder is a mock implementation of relay.Forwarder.
type Forwarder struct {
	mock.Mock
}

// NewForwarder creates a forwarder mock that asserts its expectations on cleanup.
func NewForwarder(t testingT) *Forwarder {
	m := &Forwarder{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Forwarder) Forward(ctx context.Context, o origin.Origin, req relay.Request) (relay.Response, error) {
	args := m.Called(ctx, o, req)
	return args.Get(0).(relay.Response), args.Error(1)
}

// Notifier is a mock implementation of relay.Notifier.
type Notifier struct {
	mock.Mock
}

// NewNotifier creates a notifier mock that asserts its expectations on cleanup.
func NewNotifier(t testingT) *Notifier {
	m := &Notifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Notifier) Notify(ctx context.Context, o origin.Origin, requestID int64) error {
	args := m.Called(ctx, o, requestID)
	return args.Error(0)
}
