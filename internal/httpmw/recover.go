package httpmw

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/keithlinneman/linnemanlabs-cms/internal/log"
	"github.com/keithlinneman/linnemanlabs-cms/internal/xerrors"
)

// Recover turns a handler panic into a 500 and logs it on base, since it
// runs outside the request logger. onPanic, when set, runs after logging
// and feeds the panic counter. http.ErrAbortHandler is re-raised so
// net/http still aborts the connection.
func Recover(base log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if base == nil {
		base = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				var err error
				switch pv := v.(type) {
				case error:
					err = xerrors.Wrap(pv, "panic")
				default:
					err = xerrors.Newf("panic: %v", pv)
				}

				base.With(
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
				).Error(r.Context(), err, "httpserver panic recovered",
					"panic.value", fmt.Sprint(v),
					"stack", string(debug.Stack()),
				)

				if onPanic != nil {
					onPanic()
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
