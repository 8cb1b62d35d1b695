// Package memory provides an in-memory transactional record store. It backs
// tests and local development and behaves like the PostgreSQL store:
// natural-key upserts, all-or-nothing units of work, and the same errors.
package memory

import (
	"context"
	"sync"

	"github.com/campus-records/records-core/internal/domain/attendance"
	"github.com/campus-records/records-core/internal/domain/course"
	"github.com/campus-records/records-core/internal/domain/finance"
	"github.com/campus-records/records-core/internal/domain/grade"
	"github.com/campus-records/records-core/internal/domain/recordstore"
	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/timeutil"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

type attendanceKey struct {
	student uuid.UUID
	course  uuid.UUID
	day     string
}

func keyOfAttendance(k attendance.NaturalKey) attendanceKey {
	return attendanceKey{student: k.StudentID, course: k.CourseID, day: timeutil.FormatDay(k.Date)}
}

type state struct {
	attendance   map[attendanceKey]*attendance.Record
	assessments  map[grade.NaturalKey]*grade.Assessment
	transactions map[finance.NaturalKey]*finance.Transaction
	courses      map[uuid.UUID]*course.Course
}

func newState() *state {
	return &state{
		attendance:   map[attendanceKey]*attendance.Record{},
		assessments:  map[grade.NaturalKey]*grade.Assessment{},
		transactions: map[finance.NaturalKey]*finance.Transaction{},
		courses:      map[uuid.UUID]*course.Course{},
	}
}

// clone copies every record so a unit of work never aliases committed state.
func (s *state) clone() *state {
	c := &state{
		attendance:   make(map[attendanceKey]*attendance.Record, len(s.attendance)),
		assessments:  make(map[grade.NaturalKey]*grade.Assessment, len(s.assessments)),
		transactions: make(map[finance.NaturalKey]*finance.Transaction, len(s.transactions)),
		courses:      make(map[uuid.UUID]*course.Course, len(s.courses)),
	}
	for k, v := range s.attendance {
		c.attendance[k] = v.Clone()
	}
	for k, v := range s.assessments {
		c.assessments[k] = v.Clone()
	}
	for k, v := range s.transactions {
		c.transactions[k] = v.Clone()
	}
	for k, v := range s.courses {
		cc := *v
		c.courses[k] = &cc
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// FAULT INJECTION
// ══════════════════════════════════════════════════════════════════════════════

// FaultFunc is consulted before every write. A non-nil return aborts the
// write as a persistence error. op is "<domain>.<Method>", key the natural key.
type FaultFunc func(op, key string) error

// FailOnKey returns a FaultFunc that fails writes of the given natural key.
func FailOnKey(key string, err error) FaultFunc {
	return func(_, k string) error {
		if k == key {
			return err
		}
		return nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// access runs reads and writes against some version of the state.
type access interface {
	read(ctx context.Context, fn func(st *state) error) error
	write(ctx context.Context, op, key string, fn func(st *state) error) error
}

// Store is the in-memory record store. Writers are serialized; readers see
// the last committed state and never block on an open unit of work.
type Store struct {
	writer chan struct{}

	mu    sync.RWMutex
	state *state
	fault FaultFunc
}

var _ recordstore.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		writer: make(chan struct{}, 1),
		state:  newState(),
	}
}

// InjectFault installs a fault hook. Nil removes it.
func (s *Store) InjectFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

func (s *Store) checkFault(op, key string) error {
	s.mu.RLock()
	f := s.fault
	s.mu.RUnlock()
	if f == nil {
		return nil
	}
	if err := f(op, key); err != nil {
		return shared.WrapError("memory", op, shared.ErrPersistence, "write failed for "+key, err)
	}
	return nil
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.writer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return shared.WrapError("memory", "Begin", shared.ErrTimeout, "waiting for writer", ctx.Err())
	}
}

func (s *Store) release() { <-s.writer }

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) publish(st *state) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Store) read(_ context.Context, fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// write runs a single-record write as its own short unit of work.
func (s *Store) write(ctx context.Context, op, key string, fn func(st *state) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if err := s.checkFault(op, key); err != nil {
		return err
	}
	st := s.snapshot()
	if err := fn(st); err != nil {
		return err
	}
	s.publish(st)
	return nil
}

// Attendance returns the attendance repository.
func (s *Store) Attendance() attendance.Repository { return &attendanceRepo{a: s} }

// Assessments returns the assessment repository.
func (s *Store) Assessments() grade.Repository { return &gradeRepo{a: s} }

// Transactions returns the financial transaction repository.
func (s *Store) Transactions() finance.Repository { return &financeRepo{a: s} }

// Courses returns the course repository.
func (s *Store) Courses() course.Repository { return &courseRepo{a: s} }

// Begin opens a unit of work. It blocks while another one is open.
func (s *Store) Begin(ctx context.Context) (recordstore.UnitOfWork, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	return &unitOfWork{store: s, state: s.snapshot()}, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// Counts returns the number of stored records per kind.
func (s *Store) Counts() (attendanceCount, assessmentCount, transactionCount int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.attendance), len(s.state.assessments), len(s.state.transactions)
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

type unitOfWork struct {
	store *Store
	state *state
	done  bool
}

var errUnitClosed = shared.NewDomainError("memory", "UnitOfWork", shared.ErrPersistence, "unit of work already finished")

func (u *unitOfWork) read(_ context.Context, fn func(st *state) error) error {
	if u.done {
		return errUnitClosed
	}
	return fn(u.state)
}

func (u *unitOfWork) write(_ context.Context, op, key string, fn func(st *state) error) error {
	if u.done {
		return errUnitClosed
	}
	if err := u.store.checkFault(op, key); err != nil {
		return err
	}
	return fn(u.state)
}

func (u *unitOfWork) Attendance() attendance.Repository { return &attendanceRepo{a: u} }
func (u *unitOfWork) Assessments() grade.Repository     { return &gradeRepo{a: u} }
func (u *unitOfWork) Transactions() finance.Repository  { return &financeRepo{a: u} }
func (u *unitOfWork) Courses() course.Repository        { return &courseRepo{a: u} }

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return errUnitClosed
	}
	if err := ctx.Err(); err != nil {
		return shared.WrapError("memory", "Commit", shared.ErrTimeout, "context done before commit", err)
	}
	if err := u.store.checkFault("memory.Commit", ""); err != nil {
		return err
	}
	u.done = true
	u.store.publish(u.state)
	u.store.release()
	return nil
}

func (u *unitOfWork) Rollback(context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.state = nil
	u.store.release()
	return nil
}
