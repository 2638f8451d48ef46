package data

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/starkescrow/starkescrow/internal/tracker"
)

// Ensure MockAttemptModel implements all AttemptModel methods
var _ interface {
	Record(ctx context.Context, attempt tracker.Attempt) error
	Get(ctx context.Context, id string) (*AttemptRecord, error)
	History(ctx context.Context, filter HistoryFilter) ([]AttemptRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
} = (*MockAttemptModel)(nil)

// MockAttemptModel is a mock implementation of AttemptModel
type MockAttemptModel struct {
	mock.Mock
}

func (m *MockAttemptModel) Record(ctx context.Context, attempt tracker.Attempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptModel) Get(ctx context.Context, id string) (*AttemptRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AttemptRecord), args.Error(1)
}

func (m *MockAttemptModel) History(ctx context.Context, filter HistoryFilter) ([]AttemptRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]AttemptRecord), args.Error(1)
}

func (m *MockAttemptModel) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func NewMockAttemptModel(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockAttemptModel {
	m := &MockAttemptModel{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
