// Package recordstore defines the transaction boundary shared by every
// record repository. Implementations live in infrastructure/persistence.
package recordstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/campus-records/records-core/internal/domain/attendance"
	"github.com/campus-records/records-core/internal/domain/course"
	"github.com/campus-records/records-core/internal/domain/finance"
	"github.com/campus-records/records-core/internal/domain/grade"
	"github.com/campus-records/records-core/internal/domain/shared"
)

// Repositories gives access to every record repository. Inside a UnitOfWork
// they all share one transaction.
type Repositories interface {
	Attendance() attendance.Repository
	Assessments() grade.Repository
	Transactions() finance.Repository
	Courses() course.Repository
}

// UnitOfWork is an open store transaction.
type UnitOfWork interface {
	Repositories

	// Commit makes every write of the unit visible at once.
	Commit(ctx context.Context) error

	// Rollback discards every write. Calling it after Commit is a no-op.
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory opens units of work.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Store is a complete record store: non-transactional repositories for
// reads and single writes, plus a factory for transactions.
type Store interface {
	Repositories
	UnitOfWorkFactory

	Ping(ctx context.Context) error
	Close()
}

// Run executes fn inside a unit of work. The unit commits only when fn
// returns nil; any error, panic or cancelled context rolls it back.
func Run(ctx context.Context, factory UnitOfWorkFactory, fn func(uow UnitOfWork) error) (err error) {
	uow, err := factory.Begin(ctx)
	if err != nil {
		return shared.Persistence("recordstore", "Begin", "failed to begin transaction", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Rollback must run even when ctx is already cancelled.
		rbErr := uow.Rollback(context.WithoutCancel(ctx))
		if p := recover(); p != nil {
			panic(p)
		}
		if rbErr != nil && err != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err = fn(uow); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return shared.WrapError("recordstore", "Run", shared.ErrTimeout, "context done before commit", err)
	}
	if err = uow.Commit(ctx); err != nil {
		return shared.Persistence("recordstore", "Commit", "failed to commit transaction", err)
	}
	committed = true
	return nil
}
