package main

import (
	"context"
	"database/sql"
	"time"

	overrideservice "clearance/internal/override/service"
	dErrors "clearance/pkg/domain-errors"
	txcontext "clearance/pkg/platform/tx"
)

const defaultOverrideTxTimeout = 5 * time.Second

// overridePostgresTx runs override mutations in one SQL transaction. The
// stores join it through the transaction carried on ctx.
type overridePostgresTx struct {
	db        *sql.DB
	overrides overrideservice.Store
	employees overrideservice.EmployeeStore
	timeout   time.Duration
}

func newOverridePostgresTx(db *sql.DB, overrides overrideservice.Store, employees overrideservice.EmployeeStore) *overridePostgresTx {
	return &overridePostgresTx{db: db, overrides: overrides, employees: employees}
}

func (t *overridePostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores overrideservice.TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultOverrideTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stores := overrideservice.TxStores{Overrides: t.overrides, Employees: t.employees}
	return txcontext.Run(ctx, t.db, func(ctx context.Context) error {
		return fn(ctx, stores)
	})
}
