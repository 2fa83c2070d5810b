package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/keithlinneman/linnemanlabs-cms/internal/log"
	"github.com/keithlinneman/linnemanlabs-cms/internal/xerrors"
)

// Recorder receives store events for metrics. Implementations must be safe
// for concurrent use.
type Recorder interface {
	IncContentFieldsWritten(page string)
	IncContentKeysSkipped(reason string)
	IncContentPageReads()
}

type nopRecorder struct{}

func (nopRecorder) IncContentFieldsWritten(string) {}
func (nopRecorder) IncContentKeysSkipped(string)   {}
func (nopRecorder) IncContentPageReads()           {}

// Skip reasons reported to the Recorder.
const (
	SkipMalformedKey = "malformed_key"
	SkipSerialize    = "serialize"
)

// Store is the append-only content table. The gorm handle is owned by the
// caller.
type Store struct {
	db     *gorm.DB
	logger log.Logger
	rec    Recorder
	tracer trace.Tracer
}

type Option func(*Store)

func WithLogger(l log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.rec = r
		}
	}
}

func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: log.Nop(),
		rec:    nopRecorder{},
		tracer: otel.Tracer("linnemanlabs-cms/content"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Migrate creates the content table and its page index when missing. Running
// it against an existing table is a no-op.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Row{}); err != nil {
		return xerrors.Wrap(err, "migrate content table")
	}
	return nil
}

// AppendField records one write of value under a qualified key and returns
// the page it landed on. A malformed key or a value that cannot be encoded
// produces no row. The value is encoded with encoding/json, so a
// json.RawMessage is stored as its compacted text.
func (s *Store) AppendField(ctx context.Context, rawKey string, value any) (string, error) {
	ctx, span := s.tracer.Start(ctx, "content.AppendField")
	defer span.End()

	page, field, err := ParseKey(rawKey)
	if err != nil {
		s.rec.IncContentKeysSkipped(SkipMalformedKey)
		return "", err
	}
	span.SetAttributes(attribute.String("content.page", page))

	encoded, err := json.Marshal(value)
	if err != nil {
		s.rec.IncContentKeysSkipped(SkipSerialize)
		return "", fmt.Errorf("%w: key %q: %v", ErrSerialization, rawKey, err)
	}

	row := Row{Page: page, ContentKey: field, Value: string(encoded)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return "", xerrors.Wrapf(err, "insert content row page=%s key=%s", page, field)
	}
	s.rec.IncContentFieldsWritten(page)
	return page, nil
}

// BatchResult reports what ApplyBatch did. The slices are never nil so they
// encode as JSON arrays.
type BatchResult struct {
	// UpdatedPages lists each page that received a row, in first-touch order.
	UpdatedPages []string `json:"pages"`
	// Keys echoes every input key in input order, skipped ones included.
	Keys []string `json:"keys"`
	// Skipped lists keys that produced no row.
	Skipped []string `json:"skipped"`
}

// ApplyBatch appends every entry in order. Entries are independent: a
// malformed key or unencodable value is recorded in Skipped and the batch
// continues. A storage error stops the batch; rows already written stay and
// the partial result is returned with the error.
func (s *Store) ApplyBatch(ctx context.Context, batch Batch) (BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "content.ApplyBatch",
		trace.WithAttributes(attribute.Int("content.entries", len(batch))))
	defer span.End()

	res := BatchResult{
		UpdatedPages: []string{},
		Keys:         batch.Keys(),
		Skipped:      []string{},
	}

	seen := make(map[string]struct{})
	for _, e := range batch {
		page, err := s.AppendField(ctx, e.Key, e.Value)
		switch {
		case err == nil:
			if _, ok := seen[page]; !ok {
				seen[page] = struct{}{}
				res.UpdatedPages = append(res.UpdatedPages, page)
			}
		case errors.Is(err, ErrSkippedKey), errors.Is(err, ErrSerialization):
			s.logger.Debug(ctx, "content entry skipped", "key", e.Key, "reason", err.Error())
			res.Skipped = append(res.Skipped, e.Key)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "batch aborted")
			return res, err
		}
	}
	span.SetAttributes(
		attribute.Int("content.pages", len(res.UpdatedPages)),
		attribute.Int("content.skipped", len(res.Skipped)),
	)
	return res, nil
}

// PageContent rebuilds the current view of page as qualified key to JSON
// value. Rows are visited in ascending id order so the latest write of each
// field wins. A row whose value is not valid JSON is left out and logged.
// An unknown page yields an empty map.
func (s *Store) PageContent(ctx context.Context, page string) (map[string]json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "content.PageContent",
		trace.WithAttributes(attribute.String("content.page", page)))
	defer span.End()

	var rows []Row
	err := s.db.WithContext(ctx).
		Where("page = ?", page).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, xerrors.Wrapf(err, "select content page=%s", page)
	}
	s.rec.IncContentPageReads()

	out := make(map[string]json.RawMessage, len(rows))
	for _, r := range rows {
		if !json.Valid([]byte(r.Value)) {
			s.logger.Warn(ctx, "skipping content row with invalid json",
				"id", r.ID, "page", r.Page, "key", r.ContentKey)
			continue
		}
		out[r.QualifiedKey()] = json.RawMessage(r.Value)
	}
	span.SetAttributes(attribute.Int("content.fields", len(out)))
	return out, nil
}

// History returns every write of one field, oldest first.
func (s *Store) History(ctx context.Context, page, field string) ([]Row, error) {
	ctx, span := s.tracer.Start(ctx, "content.History",
		trace.WithAttributes(attribute.String("content.page", page)))
	defer span.End()

	rows := []Row{}
	err := s.db.WithContext(ctx).
		Where("page = ? AND content_key = ?", page, field).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, xerrors.Wrapf(err, "select content history page=%s key=%s", page, field)
	}
	return rows, nil
}
