package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/starkescrow/starkescrow/internal/entities"
)

type RPCServiceMock struct {
	mock.Mock
}

var _ RPCService = (*RPCServiceMock)(nil)

func (r *RPCServiceMock) GetTransactionReceipt(ctx context.Context, transactionHash string) (entities.TransactionReceipt, error) {
	args := r.Called(ctx, transactionHash)
	return args.Get(0).(entities.TransactionReceipt), args.Error(1)
}

func (r *RPCServiceMock) GetTransactionStatus(ctx context.Context, transactionHash string) (entities.RPCTransactionStatus, error) {
	args := r.Called(ctx, transactionHash)
	return args.Get(0).(entities.RPCTransactionStatus), args.Error(1)
}

func (r *RPCServiceMock) Call(ctx context.Context, call entities.Call) ([]string, error) {
	args := r.Called(ctx, call)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (r *RPCServiceMock) BlockNumber(ctx context.Context) (uint64, error) {
	args := r.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (r *RPCServiceMock) ChainID(ctx context.Context) (string, error) {
	args := r.Called(ctx)
	return args.String(0), args.Error(1)
}

func (r *RPCServiceMock) GetHealth(ctx context.Context) (entities.RPCHealth, error) {
	args := r.Called(ctx)
	return args.Get(0).(entities.RPCHealth), args.Error(1)
}

func (r *RPCServiceMock) TrackRPCServiceHealth(ctx context.Context, triggerHeartbeat <-chan any) error {
	args := r.Called(ctx, triggerHeartbeat)
	return args.Error(0)
}

func (r *RPCServiceMock) WaitUntilReady(ctx context.Context, expectedChainID string, attempts uint) error {
	args := r.Called(ctx, expectedChainID, attempts)
	return args.Error(0)
}

// NewRPCServiceMock creates a new instance of RPCServiceMock. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewRPCServiceMock(t interface {
	mock.TestingT
	Cleanup(func())
},
) *RPCServiceMock {
	mock := &RPCServiceMock{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
