package tracker

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/starkescrow/starkescrow/internal/entities"
)

type ExecutorMock struct {
	mock.Mock
}

var _ Executor = (*ExecutorMock)(nil)

func (e *ExecutorMock) Connected() bool {
	args := e.Called()
	return args.Bool(0)
}

func (e *ExecutorMock) Execute(ctx context.Context, calls []entities.Call) (string, error) {
	args := e.Called(ctx, calls)
	return args.String(0), args.Error(1)
}

type ReceiptSourceMock struct {
	mock.Mock
}

var _ ReceiptSource = (*ReceiptSourceMock)(nil)

func (r *ReceiptSourceMock) GetTransactionReceipt(ctx context.Context, transactionHash string) (entities.TransactionReceipt, error) {
	args := r.Called(ctx, transactionHash)
	return args.Get(0).(entities.TransactionReceipt), args.Error(1)
}

type JournalMock struct {
	mock.Mock
}

var _ Journal = (*JournalMock)(nil)

func (j *JournalMock) Record(ctx context.Context, attempt Attempt) error {
	args := j.Called(ctx, attempt)
	return args.Error(0)
}
