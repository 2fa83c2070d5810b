package content

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/keithlinneman/linnemanlabs-cms/internal/sqlstore"
)

type countingRecorder struct {
	mu      sync.Mutex
	written map[string]int
	skipped map[string]int
	reads   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{written: map[string]int{}, skipped: map[string]int{}}
}

func (c *countingRecorder) IncContentFieldsWritten(page string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written[page]++
}

func (c *countingRecorder) IncContentKeysSkipped(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped[reason]++
}

func (c *countingRecorder) IncContentPageReads() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlstore.Open(context.Background(), sqlstore.Options{
		Path: filepath.Join(t.TempDir(), "content.sqlite"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqlstore.Close(db) })
	return db
}

func newStore(t *testing.T, opts ...Option) (*Store, *gorm.DB) {
	t.Helper()
	db := openDB(t)
	s := New(db, opts...)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s, db
}

func countRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&Row{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func mustBatch(t *testing.T, body string) Batch {
	t.Helper()
	b, err := DecodeBatch(strings.NewReader(body))
	if err != nil {
		t.Fatalf("DecodeBatch(%s): %v", body, err)
	}
	return b
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		raw, page, field string
		ok               bool
	}{
		{"home.title", "home", "title", true},
		{"home.hero.title", "home", "hero.title", true},
		{"a.b.", "a", "b.", true},
		{"hometitle", "", "", false},
		{".title", "", "", false},
		{"home.", "", "", false},
		{"", "", "", false},
		{".", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			page, field, err := ParseKey(tt.raw)
			if tt.ok {
				if err != nil {
					t.Fatalf("ParseKey(%q) error: %v", tt.raw, err)
				}
				if page != tt.page || field != tt.field {
					t.Fatalf("ParseKey(%q) = (%q, %q), want (%q, %q)", tt.raw, page, field, tt.page, tt.field)
				}
				return
			}
			if !errors.Is(err, ErrSkippedKey) {
				t.Fatalf("ParseKey(%q) err = %v, want ErrSkippedKey", tt.raw, err)
			}
		})
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s, db := newStore(t)
	if _, err := s.AppendField(context.Background(), "home.title", "x"); err != nil {
		t.Fatalf("AppendField: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if n := countRows(t, db); n != 1 {
		t.Fatalf("rows after re-migrate = %d, want 1", n)
	}
	if !db.Migrator().HasIndex(&Row{}, "idx_content_page") {
		t.Fatal("page index missing")
	}
}

func TestAppendField_WritesOneRow(t *testing.T) {
	rec := newCountingRecorder()
	s, db := newStore(t, WithRecorder(rec))
	ctx := context.Background()

	page, err := s.AppendField(ctx, "home.hero.title", "Welcome")
	if err != nil {
		t.Fatalf("AppendField: %v", err)
	}
	if page != "home" {
		t.Fatalf("page = %q, want home", page)
	}

	var rows []Row
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.Page != "home" || r.ContentKey != "hero.title" || r.Value != `"Welcome"` {
		t.Fatalf("row = %+v", r)
	}
	if r.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
	if rec.written["home"] != 1 {
		t.Fatalf("written[home] = %d, want 1", rec.written["home"])
	}
}

func TestAppendField_MalformedKeyWritesNothing(t *testing.T) {
	rec := newCountingRecorder()
	s, db := newStore(t, WithRecorder(rec))
	for _, k := range []string{"hometitle", ".x", "x.", ""} {
		if _, err := s.AppendField(context.Background(), k, 1); !errors.Is(err, ErrSkippedKey) {
			t.Fatalf("AppendField(%q) err = %v, want ErrSkippedKey", k, err)
		}
	}
	if n := countRows(t, db); n != 0 {
		t.Fatalf("rows = %d, want 0", n)
	}
	if rec.skipped[SkipMalformedKey] != 4 {
		t.Fatalf("skipped = %v", rec.skipped)
	}
}

func TestAppendField_UnserializableValue(t *testing.T) {
	rec := newCountingRecorder()
	s, db := newStore(t, WithRecorder(rec))
	for _, v := range []any{math.Inf(1), make(chan int), json.RawMessage("{bad")} {
		if _, err := s.AppendField(context.Background(), "home.x", v); !errors.Is(err, ErrSerialization) {
			t.Fatalf("AppendField(%T) err = %v, want ErrSerialization", v, err)
		}
	}
	if n := countRows(t, db); n != 0 {
		t.Fatalf("rows = %d, want 0", n)
	}
	if rec.skipped[SkipSerialize] != 3 {
		t.Fatalf("skipped = %v", rec.skipped)
	}
}

func TestAppendField_StorageErrorPropagates(t *testing.T) {
	db := openDB(t)
	s := New(db) // no Migrate: the table does not exist
	_, err := s.AppendField(context.Background(), "home.title", "x")
	if err == nil {
		t.Fatal("expected storage error")
	}
	if errors.Is(err, ErrSkippedKey) || errors.Is(err, ErrSerialization) {
		t.Fatalf("storage error misclassified: %v", err)
	}
}

func TestPageContent_LatestWriteWins(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	for _, v := range []string{"Welcome", "Welcome!"} {
		if _, err := s.AppendField(ctx, "home.title", v); err != nil {
			t.Fatalf("AppendField: %v", err)
		}
	}
	got, err := s.PageContent(ctx, "home")
	if err != nil {
		t.Fatalf("PageContent: %v", err)
	}
	if len(got) != 1 || string(got["home.title"]) != `"Welcome!"` {
		t.Fatalf("content = %v", stringify(got))
	}
}

func TestPageContent_UnknownPageIsEmpty(t *testing.T) {
	rec := newCountingRecorder()
	s, _ := newStore(t, WithRecorder(rec))
	got, err := s.PageContent(context.Background(), "missing")
	if err != nil {
		t.Fatalf("PageContent: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("content = %v, want empty non-nil map", got)
	}
	if rec.reads != 1 {
		t.Fatalf("reads = %d, want 1", rec.reads)
	}
}

func TestPageContent_PagesAreIsolated(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	mustAppend(t, s, "home.title", "H")
	mustAppend(t, s, "about.title", "A")
	mustAppend(t, s, "home.hero.image", "/uploads/x.png")

	got, err := s.PageContent(ctx, "home")
	if err != nil {
		t.Fatalf("PageContent: %v", err)
	}
	want := map[string]string{
		"home.title":      `"H"`,
		"home.hero.image": `"/uploads/x.png"`,
	}
	if !reflect.DeepEqual(stringify(got), want) {
		t.Fatalf("content = %v, want %v", stringify(got), want)
	}
}

func TestPageContent_SkipsInvalidJSONRow(t *testing.T) {
	s, db := newStore(t)
	mustAppend(t, s, "home.ok", 1)
	if err := db.Create(&Row{Page: "home", ContentKey: "broken", Value: "{not json"}).Error; err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}
	got, err := s.PageContent(context.Background(), "home")
	if err != nil {
		t.Fatalf("PageContent: %v", err)
	}
	if _, ok := got["home.broken"]; ok {
		t.Fatal("corrupt row should be skipped")
	}
	if string(got["home.ok"]) != "1" {
		t.Fatalf("content = %v", stringify(got))
	}
}

func TestPageContent_ValuesRoundTrip(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	values := map[string]any{
		"p.str":    "text",
		"p.num":    42.5,
		"p.bool":   true,
		"p.null":   nil,
		"p.list":   []any{"a", 1.0},
		"p.object": map[string]any{"nested": map[string]any{"k": "v"}},
	}
	for k, v := range values {
		mustAppend(t, s, k, v)
	}
	got, err := s.PageContent(ctx, "p")
	if err != nil {
		t.Fatalf("PageContent: %v", err)
	}
	for k, want := range values {
		var v any
		if err := json.Unmarshal(got[k], &v); err != nil {
			t.Fatalf("unmarshal %s: %v", k, err)
		}
		if !reflect.DeepEqual(v, want) {
			t.Errorf("%s = %#v, want %#v", k, v, want)
		}
	}
}

func TestApplyBatch_MixedEntries(t *testing.T) {
	s, db := newStore(t)
	res, err := s.ApplyBatch(context.Background(), mustBatch(t, `{"a.x":1,"bad":2,"b.y":3}`))
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if !reflect.DeepEqual(res.UpdatedPages, []string{"a", "b"}) {
		t.Errorf("pages = %v", res.UpdatedPages)
	}
	if !reflect.DeepEqual(res.Keys, []string{"a.x", "bad", "b.y"}) {
		t.Errorf("keys = %v", res.Keys)
	}
	if !reflect.DeepEqual(res.Skipped, []string{"bad"}) {
		t.Errorf("skipped = %v", res.Skipped)
	}
	if n := countRows(t, db); n != 2 {
		t.Fatalf("rows = %d, want 2", n)
	}
}

func TestApplyBatch_PagesDedupInFirstTouchOrder(t *testing.T) {
	s, _ := newStore(t)
	res, err := s.ApplyBatch(context.Background(),
		mustBatch(t, `{"home.title":"Hi","about.body":"B","home.sub":"S"}`))
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if !reflect.DeepEqual(res.UpdatedPages, []string{"home", "about"}) {
		t.Fatalf("pages = %v", res.UpdatedPages)
	}
}

func TestApplyBatch_EmptyAndAllSkipped(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()

	res, err := s.ApplyBatch(ctx, mustBatch(t, `{}`))
	if err != nil {
		t.Fatalf("ApplyBatch(empty): %v", err)
	}
	if res.UpdatedPages == nil || res.Keys == nil || res.Skipped == nil {
		t.Fatal("result slices should be non-nil")
	}
	if len(res.UpdatedPages)+len(res.Keys)+len(res.Skipped) != 0 {
		t.Fatalf("res = %+v", res)
	}

	res, err = s.ApplyBatch(ctx, mustBatch(t, `{"nodot":1,".x":2}`))
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if len(res.UpdatedPages) != 0 || len(res.Keys) != 2 || len(res.Skipped) != 2 {
		t.Fatalf("res = %+v", res)
	}
	if n := countRows(t, db); n != 0 {
		t.Fatalf("rows = %d, want 0", n)
	}
}

func TestApplyBatch_StorageErrorStops(t *testing.T) {
	db := openDB(t)
	s := New(db)
	res, err := s.ApplyBatch(context.Background(), mustBatch(t, `{"bad":0,"a.x":1,"b.y":2}`))
	if err == nil {
		t.Fatal("expected storage error")
	}
	if !reflect.DeepEqual(res.Skipped, []string{"bad"}) || len(res.UpdatedPages) != 0 {
		t.Fatalf("partial result = %+v", res)
	}
}

func TestHistory_OldestFirst(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	mustAppend(t, s, "home.title", "v1")
	mustAppend(t, s, "home.other", "x")
	mustAppend(t, s, "home.title", "v2")

	rows, err := s.History(ctx, "home", "title")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rows) != 2 || rows[0].Value != `"v1"` || rows[1].Value != `"v2"` {
		t.Fatalf("history = %+v", rows)
	}
	if rows[0].ID >= rows[1].ID {
		t.Fatal("history not ordered by id")
	}

	rows, err = s.History(ctx, "home", "missing")
	if err != nil || rows == nil || len(rows) != 0 {
		t.Fatalf("History(missing) = %v, %v", rows, err)
	}
}

func TestConcurrentWritesAllLand(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.AppendField(ctx, "home.counter", i); err != nil {
				t.Errorf("AppendField: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if n := countRows(t, db); n != 20 {
		t.Fatalf("rows = %d, want 20", n)
	}
	got, err := s.PageContent(ctx, "home")
	if err != nil {
		t.Fatalf("PageContent: %v", err)
	}
	if _, ok := got["home.counter"]; !ok {
		t.Fatal("counter missing")
	}
}

func mustAppend(t *testing.T, s *Store, key string, v any) {
	t.Helper()
	if _, err := s.AppendField(context.Background(), key, v); err != nil {
		t.Fatalf("AppendField(%s): %v", key, err)
	}
}

func stringify(m map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = string(v)
	}
	return out
}
