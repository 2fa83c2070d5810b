package opshttp

import (
	"net/http"
	"net/netip"

	"github.com/keithlinneman/linnemanlabs-cms/internal/log"
)

// requireNonPublicNetwork rejects peers outside loopback, private and
// link-local ranges, and any request that came through a proxy. The ops
// port is reachable only from monitoring inside the VPC.
func requireNonPublicNetwork(L log.Logger, next http.Handler) http.Handler {
	if L == nil {
		L = log.Nop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ap, err := netip.ParseAddrPort(r.RemoteAddr)
		if err != nil || !allowedPeer(ap.Addr()) {
			L.Warn(r.Context(), "ops request rejected from non-private peer",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if r.Header.Get("X-Forwarded-For") != "" || r.Header.Get("Forwarded") != "" {
			L.Warn(r.Context(), "ops request rejected with forwarding headers",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func allowedPeer(a netip.Addr) bool {
	a = a.Unmap()
	return a.IsLoopback() || a.IsPrivate() || a.IsLinkLocalUnicast()
}
