package wallet

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/starkescrow/starkescrow/internal/entities"
)

type SessionMock struct {
	mock.Mock
}

var _ Session = (*SessionMock)(nil)

func (s *SessionMock) Type() SessionType {
	args := s.Called()
	return args.Get(0).(SessionType)
}

func (s *SessionMock) Address() string {
	args := s.Called()
	return args.String(0)
}

func (s *SessionMock) Status() Status {
	args := s.Called()
	return args.Get(0).(Status)
}

func (s *SessionMock) Connected() bool {
	args := s.Called()
	return args.Bool(0)
}

func (s *SessionMock) Execute(ctx context.Context, calls []entities.Call) (string, error) {
	args := s.Called(ctx, calls)
	return args.String(0), args.Error(1)
}

func (s *SessionMock) EstimateFee(ctx context.Context, calls []entities.Call) (entities.FeeEstimate, error) {
	args := s.Called(ctx, calls)
	return args.Get(0).(entities.FeeEstimate), args.Error(1)
}

// NewSessionMock creates a new instance of SessionMock. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewSessionMock(t interface {
	mock.TestingT
	Cleanup(func())
},
) *SessionMock {
	mock := &SessionMock{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
