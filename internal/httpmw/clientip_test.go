package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		xff        string
		hops       int
		want       string
		xffSurvive bool
	}{
		{"direct public", "203.0.113.9:4000", "1.2.3.4", 1, "203.0.113.9", false},
		{"private no hops", "10.0.0.5:4000", "1.2.3.4", 0, "10.0.0.5", false},
		{"private one hop", "10.0.0.5:4000", "9.9.9.9, 1.2.3.4", 1, "1.2.3.4", true},
		{"private two hops", "10.0.0.5:4000", "9.9.9.9, 1.2.3.4", 2, "9.9.9.9", true},
		{"too few entries", "10.0.0.5:4000", "1.2.3.4", 3, "10.0.0.5", false},
		{"loopback one hop", "127.0.0.1:4000", "1.2.3.4", 1, "1.2.3.4", true},
		{"garbage entry", "10.0.0.5:4000", "not-an-ip", 1, "10.0.0.5", true},
		{"no port", "10.0.0.5", "", 0, "10.0.0.5", false},
		{"mapped v6 proxy", "[::ffff:10.0.0.5]:4000", "1.2.3.4", 1, "1.2.3.4", true},
		{"v6 public", "[2001:db8::1]:4000", "1.2.3.4", 1, "2001:db8::1", false},
		{"empty remote", "", "", 0, "0.0.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got, xff string
			h := ClientIPWithOptions(ClientIPOptions{TrustedHops: tt.hops})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIPFromContext(r.Context())
				xff = r.Header.Get("X-Forwarded-For")
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Fatalf("client ip = %q, want %q", got, tt.want)
			}
			if (xff != "") != (tt.xffSurvive && tt.xff != "") {
				t.Fatalf("X-Forwarded-For after middleware = %q", xff)
			}
		})
	}
}
