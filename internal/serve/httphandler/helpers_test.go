package httphandler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/tracker"
)

const (
	testEscrowContract = "0x000000000000000000000000000000000000000000000000000000000000e5c0"
	testBuyer          = "0x0000000000000000000000000000000000000000000000000000000000000b0b"
	testSeller         = "0x0000000000000000000000000000000000000000000000000000000000000a11"
	testArbiter        = "0x0000000000000000000000000000000000000000000000000000000000000a7b"
	testStranger       = "0x0000000000000000000000000000000000000000000000000000000000000bad"
)

var testNow = time.Date(2026, 9, 20, 10, 0, 0, 0, time.UTC)

type stubCaller struct {
	mu        sync.Mutex
	responses map[string][]string
}

func newStubCaller() *stubCaller {
	return &stubCaller{responses: map[string][]string{}}
}

func (c *stubCaller) set(entrypoint string, felts []string, calldata ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[entrypoint+"("+strings.Join(calldata, ",")+")"] = felts
}

func (c *stubCaller) Call(_ context.Context, call entities.Call) ([]string, error) {
	key := call.Entrypoint + "(" + strings.Join(call.Calldata, ",") + ")"
	c.mu.Lock()
	defer c.mu.Unlock()
	felts, ok := c.responses[key]
	if !ok {
		return nil, errors.New("unexpected call " + key)
	}
	return felts, nil
}

// setEscrow registers the length prefixed get_escrow payload of escrow id.
func (c *stubCaller) setEscrow(id uint64, status escrow.Status) {
	felts := []string{
		"0x0",
		uint256.NewInt(id).Hex(),
		"0xb0b",
		"0xa11",
		"0xa7b",
		"0x14d1120d7b160000",
		"0x0",
		uint256.NewInt(uint64(status)).Hex(),
		"0x65f0c3a0",
		"0x4c6f676f2064657369676e",
	}
	payload := append([]string{uint256.NewInt(uint64(len(felts))).Hex()}, felts...)
	c.set("get_escrow", payload, uint256.NewInt(id).Dec())
}

// heldReceipts keeps every transaction unconfirmed until release is closed.
type heldReceipts struct {
	release chan struct{}
}

func (r heldReceipts) GetTransactionReceipt(ctx context.Context, hash string) (entities.TransactionReceipt, error) {
	select {
	case <-r.release:
	default:
		return entities.TransactionReceipt{}, entities.ErrTransactionNotFound
	}
	return entities.TransactionReceipt{
		TransactionHash: hash,
		ExecutionStatus: entities.ExecutionSucceeded,
		FinalityStatus:  entities.FinalityAcceptedOnL2,
		ActualFee:       entities.ActualFee{Amount: "0x2386f26fc10000", Unit: "FRI"},
		BlockNumber:     812345,
	}, nil
}

type testEnv struct {
	manager  *tracker.Manager
	service  *escrow.Service
	caller   *stubCaller
	receipts heldReceipts
	network  escrow.Network
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	receipts := heldReceipts{release: make(chan struct{})}
	manager, err := tracker.NewManager(tracker.ManagerConfigs{
		Receipts:     receipts,
		PollInterval: time.Millisecond,
		MaxObservers: 2,
	})
	require.NoError(t, err)
	t.Cleanup(manager.Shutdown)

	pool := pond.NewPool(2)
	t.Cleanup(pool.StopAndWait)

	calls, err := escrow.NewCallBuilder(testEscrowContract, escrow.StrkTokenAddress)
	require.NoError(t, err)

	caller := newStubCaller()
	reader, err := escrow.NewReader(escrow.ReaderConfigs{Caller: caller, Calls: calls, Pool: pool})
	require.NoError(t, err)

	network, err := escrow.GetNetwork("sepolia")
	require.NoError(t, err)

	service, err := escrow.NewService(escrow.ServiceConfigs{
		Manager: manager,
		Reader:  reader,
		Calls:   calls,
		Network: network,
	})
	require.NoError(t, err)

	return &testEnv{manager: manager, service: service, caller: caller, receipts: receipts, network: network}
}

func (e *testEnv) confirmAll() {
	close(e.receipts.release)
}

func (e *testEnv) waitForPhase(t *testing.T, action string, phase tracker.Phase) tracker.Attempt {
	t.Helper()
	var attempt tracker.Attempt
	require.Eventually(t, func() bool {
		a, err := e.manager.Get(action)
		if err != nil {
			return false
		}
		attempt = a
		return a.Phase == phase
	}, 5*time.Second, 5*time.Millisecond)
	return attempt
}
