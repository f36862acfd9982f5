// Package mocks provides testify mocks of the engine's collaborator contracts.
package mocks

import (
	"context"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockSender is a mock implementation of protocol.Sender interface.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(
	ctx context.Context,
	account *models.ConnectedAccount,
	recipient, subject, body string,
) (protocol.SendResult, error) {
	args := m.Called(ctx, account, recipient, subject, body)

	return args.Get(0).(protocol.SendResult), args.Error(1)
}

// MockTokenRefresher is a mock implementation of protocol.TokenRefresher interface.
type MockTokenRefresher struct {
	mock.Mock
}

func (m *MockTokenRefresher) RefreshToken(ctx context.Context, account *models.ConnectedAccount) (*models.Token, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Token), args.Error(1)
}

// MockTracker is a mock implementation of protocol.Tracker interface.
type MockTracker struct {
	mock.Mock
}

func (m *MockTracker) WasLinkClicked(ctx context.Context, leadID, emailID, url string) (bool, error) {
	args := m.Called(ctx, leadID, emailID, url)

	return args.Bool(0), args.Error(1)
}

func (m *MockTracker) HasReplied(ctx context.Context, leadID string) (bool, error) {
	args := m.Called(ctx, leadID)

	return args.Bool(0), args.Error(1)
}

// MockDispatcher is a mock implementation of protocol.Dispatcher interface.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, item *models.QueueItem) error {
	args := m.Called(ctx, item)

	return args.Error(0)
}
