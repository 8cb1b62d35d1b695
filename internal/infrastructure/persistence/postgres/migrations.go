package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrMigrationFailed wraps any failure while applying a migration.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insertQuery := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_courses",
			UpSQL:   migration001Up,
		},
		{
			Version: 2,
			Name:    "create_attendance",
			UpSQL:   migration002Up,
		},
		{
			Version: 3,
			Name:    "create_assessments",
			UpSQL:   migration003Up,
		},
		{
			Version: 4,
			Name:    "create_financial_transactions",
			UpSQL:   migration004Up,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE COURSES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS courses (
    id UUID PRIMARY KEY,
    code VARCHAR(30) NOT NULL,
    name VARCHAR(200) NOT NULL DEFAULT '',
    credits INTEGER NOT NULL,
    term VARCHAR(20) NOT NULL,
    academic_year VARCHAR(9) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_credits CHECK (credits > 0)
);

CREATE INDEX IF NOT EXISTS idx_courses_term ON courses(academic_year, term);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS attendance (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL,
    course_id UUID NOT NULL,
    attendance_date DATE NOT NULL,
    status VARCHAR(10) NOT NULL,
    remarks TEXT NOT NULL DEFAULT '',
    recorded_by UUID,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_attendance_natural_key UNIQUE (student_id, course_id, attendance_date),
    CONSTRAINT valid_attendance_status CHECK (status IN ('PRESENT', 'ABSENT', 'LATE', 'EXCUSED'))
);

CREATE INDEX IF NOT EXISTS idx_attendance_course_date ON attendance(course_id, attendance_date);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ASSESSMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS assessments (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL,
    course_id UUID NOT NULL,
    assessment_type VARCHAR(30) NOT NULL,
    assessment_name VARCHAR(200) NOT NULL,
    marks_obtained NUMERIC NOT NULL,
    marks_possible NUMERIC NOT NULL,
    percentage NUMERIC(7,2) NOT NULL,
    letter_grade VARCHAR(2) NOT NULL,
    term VARCHAR(20) NOT NULL,
    academic_year VARCHAR(9) NOT NULL,
    recorded_by UUID,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_assessment_natural_key
        UNIQUE (student_id, course_id, assessment_type, assessment_name, term, academic_year),
    CONSTRAINT valid_marks CHECK (marks_possible > 0 AND marks_obtained >= 0)
);

CREATE INDEX IF NOT EXISTS idx_assessments_student_term ON assessments(student_id, academic_year, term);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE FINANCIAL TRANSACTIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS financial_transactions (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL,
    reference VARCHAR(100) NOT NULL,
    transaction_type VARCHAR(15) NOT NULL,
    amount NUMERIC NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    transaction_date DATE NOT NULL,
    due_date DATE,
    payment_status VARCHAR(10) NOT NULL DEFAULT 'PENDING',
    payment_method VARCHAR(50) NOT NULL DEFAULT '',
    payment_date DATE,
    receipt_number VARCHAR(100) NOT NULL DEFAULT '',
    recorded_by UUID,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_transaction_reference UNIQUE (student_id, reference),
    CONSTRAINT valid_amount CHECK (amount >= 0),
    CONSTRAINT valid_transaction_type
        CHECK (transaction_type IN ('FEE', 'PAYMENT', 'REFUND', 'SCHOLARSHIP', 'PENALTY')),
    CONSTRAINT valid_payment_status
        CHECK (payment_status IN ('PENDING', 'PAID', 'OVERDUE', 'CANCELLED'))
);

CREATE INDEX IF NOT EXISTS idx_transactions_outstanding
    ON financial_transactions(student_id, due_date)
    WHERE payment_status IN ('PENDING', 'OVERDUE');
`
