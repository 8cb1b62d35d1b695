package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/campus-records/records-core/internal/domain/attendance"
	"github.com/campus-records/records-core/internal/domain/course"
	"github.com/campus-records/records-core/internal/domain/finance"
	"github.com/campus-records/records-core/internal/domain/grade"
	"github.com/campus-records/records-core/internal/domain/recordstore"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// db pairs a Querier (pool or transaction) with the connection whose
// per-operation timeout applies to it.
type db struct {
	q    Querier
	conn *Connection
}

func (d db) op(ctx context.Context) (context.Context, context.CancelFunc) {
	return d.conn.withTimeout(ctx)
}

// rowScanner is implemented by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Store implements recordstore.Store on PostgreSQL.
type Store struct {
	conn *Connection
}

var _ recordstore.Store = (*Store)(nil)

// NewStore creates a Store over an open connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

func (s *Store) db() db { return db{q: s.conn, conn: s.conn} }

// Attendance returns the attendance repository.
func (s *Store) Attendance() attendance.Repository { return &AttendanceRepository{db: s.db()} }

// Assessments returns the assessment repository.
func (s *Store) Assessments() grade.Repository { return &AssessmentRepository{db: s.db()} }

// Transactions returns the financial transaction repository.
func (s *Store) Transactions() finance.Repository { return &TransactionRepository{db: s.db()} }

// Courses returns the course repository.
func (s *Store) Courses() course.Repository { return &CourseRepository{db: s.db()} }

// Begin opens a READ COMMITTED transaction.
func (s *Store) Begin(ctx context.Context) (recordstore.UnitOfWork, error) {
	tx, err := s.conn.BeginTx(ctx, DefaultTxOptions())
	if err != nil {
		return nil, classify("postgres", "Begin", "failed to begin transaction", err)
	}
	return &unitOfWork{tx: tx, conn: s.conn}, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.conn.Ping(ctx) }

// Close closes the connection pool.
func (s *Store) Close() { s.conn.Close() }

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

type unitOfWork struct {
	tx   pgx.Tx
	conn *Connection
}

func (u *unitOfWork) db() db { return db{q: u.tx, conn: u.conn} }

func (u *unitOfWork) Attendance() attendance.Repository { return &AttendanceRepository{db: u.db()} }
func (u *unitOfWork) Assessments() grade.Repository     { return &AssessmentRepository{db: u.db()} }
func (u *unitOfWork) Transactions() finance.Repository  { return &TransactionRepository{db: u.db()} }
func (u *unitOfWork) Courses() course.Repository        { return &CourseRepository{db: u.db()} }

func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return classify("postgres", "Commit", "failed to commit transaction", err)
	}
	return nil
}

// Rollback after a commit attempt is a no-op.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return classify("postgres", "Rollback", "failed to roll back transaction", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY BUILDING
// ══════════════════════════════════════════════════════════════════════════════

// where accumulates AND-ed conditions with positional arguments.
// Each condition holds one "?" that becomes the next $n.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(w.args)), 1))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
