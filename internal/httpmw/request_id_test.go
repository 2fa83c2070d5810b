package httpmw

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"propagated", "abc-123_X.y", true},
		{"log injection", "abc\n level=error", false},
		{"too long", strings.Repeat("a", maxRequestIDLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestID("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-Id", tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if seen == "" || rec.Header().Get("X-Request-Id") != seen {
				t.Fatalf("context id %q, header %q", seen, rec.Header().Get("X-Request-Id"))
			}
			if tt.keep && seen != tt.incoming {
				t.Fatalf("id = %q, want %q", seen, tt.incoming)
			}
			if !tt.keep && (seen == tt.incoming || !validRequestID(seen)) {
				t.Fatalf("id = %q, want a fresh well formed id", seen)
			}
		})
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	if got := RequestIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestRequestID_GeneratedIDsSort(t *testing.T) {
	var ids []string
	h := RequestID("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, RequestIDFromContext(r.Context()))
	}))
	for range 3 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	if !sort.StringsAreSorted(ids) || ids[0] == ids[2] {
		t.Fatalf("ids not increasing: %v", ids)
	}
}
