package httpmw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecover(t *testing.T) {
	boom := errors.New("database connection lost")
	tests := []struct {
		name  string
		value any
	}{
		{"string", "something broke"},
		{"error", boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newCaptureLogger()
			panics := 0
			h := Recover(L, func() { panics++ })(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic(tt.value)
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/content", nil))

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}
			if panics != 1 {
				t.Fatalf("onPanic called %d times", panics)
			}
			entries := L.all()
			if len(entries) != 1 || entries[0].msg != "httpserver panic recovered" || entries[0].err == nil {
				t.Fatalf("entries = %+v", entries)
			}
			if p, _ := entries[0].field("url.path"); p != "/api/content" {
				t.Fatalf("url.path = %v", p)
			}
			if tt.name == "error" && !errors.Is(entries[0].err, boom) {
				t.Fatal("panic error should be wrapped, not replaced")
			}
		})
	}
}

func TestRecover_NoPanicPassesThrough(t *testing.T) {
	L := newCaptureLogger()
	h := Recover(L, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusCreated || rec.Body.String() != "created" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
	if len(L.all()) != 0 {
		t.Fatal("nothing should be logged")
	}
}

func TestRecover_ReraisesAbortHandler(t *testing.T) {
	h := Recover(nil, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Fatalf("recovered %v, want ErrAbortHandler", v)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
