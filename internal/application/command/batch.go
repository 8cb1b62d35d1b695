// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/campus-records/records-core/internal/domain/recordstore"
	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/logger"
	"github.com/campus-records/records-core/pkg/timeutil"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultMaxBatchSize bounds the number of records in one batch.
const DefaultMaxBatchSize = 1000

// ══════════════════════════════════════════════════════════════════════════════
// INPUT VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names so messages match what the caller sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// checkShape runs the struct tags of an input.
func checkShape(domain, op string, input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError(domain, op, shared.ErrValidation, "invalid input", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return shared.WrapError(domain, op, shared.ErrValidation, strings.Join(msgs, "; "), err)
}

func parseOptionalID(field, value string) (uuid.NullUUID, error) {
	if strings.TrimSpace(value) == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := shared.ParseID(field, value)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

func parseOptionalDate(domain, op, field, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := timeutil.ParseDate(value)
	if err != nil {
		return nil, shared.WrapError(domain, op, shared.ErrInvalidFormat, field+" must be YYYY-MM-DD", err)
	}
	return &d, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCH HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// entry is a validated batch record with its position in the request.
type entry[T any] struct {
	index  int
	key    string
	record T
}

// dedupe collapses entries sharing a natural key. The last entry wins and
// takes the position of the first occurrence.
func dedupe[T any](entries []entry[T]) []entry[T] {
	pos := make(map[string]int, len(entries))
	out := make([]entry[T], 0, len(entries))
	for _, e := range entries {
		if i, ok := pos[e.key]; ok {
			out[i] = e
			continue
		}
		pos[e.key] = len(out)
		out = append(out, e)
	}
	return out
}

func checkBatchSize(domain, op string, n, limit int) error {
	if n == 0 {
		return shared.WrapError(domain, op, shared.ErrValidation, "batch contains no records", shared.ErrEmptyBatch)
	}
	if limit > 0 && n > limit {
		return shared.Validationf(domain, op, "batch of %d records exceeds the limit of %d", n, limit)
	}
	return nil
}

// invalidRecord reports a record that failed validation. The underlying
// error stays reachable through errors.Is.
func invalidRecord(domain, op string, index int, key string, err error) error {
	return shared.WrapError(domain, op, shared.ErrValidation, fmt.Sprintf("record %d (%s) is invalid", index, key), err)
}

// storeFailure reports a record the store refused. Rejections that carry a
// domain kind keep it; everything else is a persistence error.
func storeFailure(domain, op string, index int, key string, err error) error {
	kind := shared.ErrPersistence
	switch {
	case shared.IsValidation(err):
		kind = shared.ErrValidation
	case shared.IsStateTransition(err):
		kind = shared.ErrStateTransition
	case shared.IsNotFound(err):
		kind = shared.ErrNotFound
	}
	return shared.WrapError(domain, op, kind, fmt.Sprintf("record %d (%s) was not written", index, key), err)
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains the settings shared by every command handler.
type Config struct {
	MaxBatchSize int
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{MaxBatchSize: DefaultMaxBatchSize}
}

// writer carries what every command handler needs to run a unit of work and
// announce its result.
type writer struct {
	store     recordstore.UnitOfWorkFactory
	publisher shared.EventPublisher
	logger    *slog.Logger
	config    Config
}

func newWriter(store recordstore.UnitOfWorkFactory, publisher shared.EventPublisher, log *slog.Logger, config Config) writer {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Discard()
	}
	if config.MaxBatchSize == 0 {
		config.MaxBatchSize = DefaultMaxBatchSize
	}
	return writer{store: store, publisher: publisher, logger: log, config: config}
}

// run executes fn in one unit of work and logs the outcome.
func (w writer) run(ctx context.Context, op, batchID string, size int, fn func(uow recordstore.UnitOfWork) error) error {
	start := time.Now()
	err := recordstore.Run(ctx, w.store, fn)
	attrs := []any{
		logger.Operation(op),
		logger.BatchID(batchID),
		logger.BatchSize(size),
		logger.Latency(time.Since(start)),
	}
	if err != nil {
		w.logger.WarnContext(ctx, "write rolled back", append(attrs, logger.Err(err))...)
		return err
	}
	w.logger.InfoContext(ctx, "write committed", attrs...)
	return nil
}

// publish announces a committed write. Subscriber failures are logged and
// never undo the write.
func (w writer) publish(ctx context.Context, eventType shared.EventType, batchID string, studentIDs []string, count int) {
	event := shared.NewRecordsCommittedEvent(eventType, batchID, studentIDs, count)
	if err := w.publisher.Publish(event); err != nil {
		w.logger.WarnContext(ctx, "event publish failed",
			slog.String("event_type", string(eventType)),
			logger.BatchID(batchID),
			logger.Err(err),
		)
	}
}

func newBatchID() string {
	return uuid.NewString()
}

// studentSet collects distinct student IDs in first-seen order.
type studentSet struct {
	seen map[uuid.UUID]struct{}
	ids  []string
}

func (s *studentSet) add(id uuid.UUID) {
	if s.seen == nil {
		s.seen = make(map[uuid.UUID]struct{})
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.ids = append(s.ids, id.String())
}
