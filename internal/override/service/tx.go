package service

import (
	"context"
	"sync"
	"time"

	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
)

// StoreTx provides a transactional boundary for override mutations.
// Implementations may wrap a database transaction or, in-memory, a sharded
// lock. fn must use the ctx it is given so stores join the transaction.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}

// TxStores are the stores available inside a transaction.
type TxStores struct {
	Overrides Store
	Employees EmployeeStore
}

// numShards spreads in-memory transactions across locks keyed by employee.
const numShards = 64

const defaultTxTimeout = 5 * time.Second

// ShardedTx is the in-memory StoreTx. Transactions touching the same
// employee serialise; others run concurrently.
type ShardedTx struct {
	shards  [numShards]sync.Mutex
	stores  TxStores
	timeout time.Duration
}

// NewShardedTx wraps in-memory stores in a sharded-lock transaction.
func NewShardedTx(overrides Store, employees EmployeeStore) *ShardedTx {
	return &ShardedTx{
		stores:  TxStores{Overrides: overrides, Employees: employees},
		timeout: defaultTxTimeout,
	}
}

func (t *ShardedTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx, t.stores)
}

func (t *ShardedTx) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(txShardKeyCtx).(string); ok && key != "" {
		return int(hashString(key) % numShards)
	}
	return 0
}

// withShardKey routes the transaction to the employee's shard.
func withShardKey(ctx context.Context, employeeID id.EmployeeID) context.Context {
	return context.WithValue(ctx, txShardKeyCtx, employeeID.String())
}

// hashString is FNV-1a.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type txShardKey struct{}

var txShardKeyCtx = txShardKey{}
