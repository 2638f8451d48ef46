package escrow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/holiman/uint256"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/utils"
)

const defaultCacheTTL = 10 * time.Second

// ContractCaller runs read-only contract calls.
type ContractCaller interface {
	Call(ctx context.Context, call entities.Call) ([]string, error)
}

type Stats struct {
	Total     uint64 `json:"total"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Disputed  int    `json:"disputed"`
}

type ReaderConfigs struct {
	Caller   ContractCaller
	Calls    CallBuilder
	Pool     pond.Pool
	CacheTTL time.Duration
	Clock    func() time.Time
}

type cachedEscrow struct {
	escrow    Escrow
	fetchedAt time.Time
}

// Reader loads escrows from the contract. Single escrow reads are cached briefly and can be invalidated
// once a transaction touching the escrow is confirmed.
type Reader struct {
	caller   ContractCaller
	calls    CallBuilder
	pool     pond.Pool
	cacheTTL time.Duration
	clock    func() time.Time

	mu    sync.Mutex
	cache map[uint64]cachedEscrow
}

func NewReader(cfg ReaderConfigs) (*Reader, error) {
	if cfg.Caller == nil {
		return nil, errors.New("caller is required")
	}
	if cfg.Pool == nil {
		return nil, errors.New("pool is required")
	}
	if cfg.Calls.EscrowContract == "" {
		return nil, errors.New("escrow contract address is required")
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Reader{
		caller:   cfg.Caller,
		calls:    cfg.Calls,
		pool:     cfg.Pool,
		cacheTTL: cfg.CacheTTL,
		clock:    cfg.Clock,
		cache:    make(map[uint64]cachedEscrow),
	}, nil
}

func (r *Reader) GetEscrow(ctx context.Context, id uint64) (Escrow, error) {
	r.mu.Lock()
	cached, ok := r.cache[id]
	r.mu.Unlock()
	if ok && r.clock().Sub(cached.fetchedAt) < r.cacheTTL {
		return cached.escrow, nil
	}

	felts, err := r.caller.Call(ctx, r.calls.GetEscrow(id))
	if err != nil {
		return Escrow{}, fmt.Errorf("reading escrow %d: %w", id, err)
	}
	payload, err := DecodeArray(felts)
	if err != nil {
		return Escrow{}, fmt.Errorf("reading escrow %d: %w", id, err)
	}
	e, err := DecodeEscrow(payload)
	if err != nil {
		return Escrow{}, fmt.Errorf("reading escrow %d: %w", id, err)
	}

	r.mu.Lock()
	r.cache[id] = cachedEscrow{escrow: e, fetchedAt: r.clock()}
	r.mu.Unlock()
	return e, nil
}

// Invalidate drops the cached copy of escrow id.
func (r *Reader) Invalidate(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, id)
}

func (r *Reader) GetEscrowCount(ctx context.Context) (uint64, error) {
	felts, err := r.caller.Call(ctx, r.calls.GetEscrowCount())
	if err != nil {
		return 0, fmt.Errorf("reading escrow count: %w", err)
	}
	if len(felts) == 0 {
		return 0, errors.New("reading escrow count: empty result")
	}
	count, err := utils.FeltToUint64(felts[0])
	if err != nil {
		return 0, fmt.Errorf("reading escrow count: %w", err)
	}
	return count, nil
}

func (r *Reader) GetEscrowIDs(ctx context.Context, role Role, address string) ([]uint64, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	normalized, err := utils.NormalizeAddress(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	felts, err := r.caller.Call(ctx, r.calls.GetEscrowsByRole(role, normalized))
	if err != nil {
		return nil, fmt.Errorf("reading %s escrows: %w", role, err)
	}
	ids, err := DecodeIDs(felts)
	if err != nil {
		return nil, fmt.Errorf("reading %s escrows: %w", role, err)
	}
	return ids, nil
}

// ListEscrows loads every escrow address holds role in. Escrows that cannot be read are skipped.
func (r *Reader) ListEscrows(ctx context.Context, role Role, address string) ([]Escrow, error) {
	ids, err := r.GetEscrowIDs(ctx, role, address)
	if err != nil {
		return nil, err
	}

	escrows := r.fetchAll(ctx, ids)
	sort.Slice(escrows, func(i, j int) bool { return escrows[i].ID > escrows[j].ID })
	return escrows, nil
}

// GetStats reads escrows 1..count concurrently and tallies them by status. Escrows that cannot be read or
// no longer exist are not counted.
func (r *Reader) GetStats(ctx context.Context) (Stats, error) {
	count, err := r.GetEscrowCount(ctx)
	if err != nil {
		return Stats{}, err
	}

	ids := make([]uint64, 0, count)
	for id := uint64(1); id <= count; id++ {
		ids = append(ids, id)
	}

	stats := Stats{Total: count}
	for _, e := range r.fetchAll(ctx, ids) {
		switch {
		case e.Status == StatusFunded:
			stats.Active++
		case e.Status.IsClosed():
			stats.Completed++
		case e.Status == StatusDisputed:
			stats.Disputed++
		}
	}
	return stats, nil
}

func (r *Reader) BalanceOf(ctx context.Context, address string) (*uint256.Int, error) {
	normalized, err := utils.NormalizeAddress(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	felts, err := r.caller.Call(ctx, r.calls.BalanceOf(normalized))
	if err != nil {
		return nil, fmt.Errorf("reading balance: %w", err)
	}
	if len(felts) < 2 {
		return nil, fmt.Errorf("reading balance: expected a u256, got %d felts", len(felts))
	}
	balance, err := utils.JoinU256(felts[0], felts[1])
	if err != nil {
		return nil, fmt.Errorf("reading balance: %w", err)
	}
	return balance, nil
}

func (r *Reader) fetchAll(ctx context.Context, ids []uint64) []Escrow {
	group := r.pool.NewGroupContext(ctx)

	var (
		mu      sync.Mutex
		escrows = make([]Escrow, 0, len(ids))
	)
	for _, id := range ids {
		group.Submit(func() {
			e, err := r.GetEscrow(ctx, id)
			if err != nil {
				if !errors.Is(err, ErrEscrowNotFound) {
					log.Ctx(ctx).Debugf("skipping escrow %d: %v", id, err)
				}
				return
			}
			mu.Lock()
			escrows = append(escrows, e)
			mu.Unlock()
		})
	}
	if err := group.Wait(); err != nil {
		log.Ctx(ctx).Warnf("waiting for escrow reads: %v", err)
	}
	return escrows
}
