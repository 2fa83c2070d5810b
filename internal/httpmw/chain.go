package httpmw

import "net/http"

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// Chain wraps h so that mws[0] is the outermost layer. Nil entries are
// skipped, so optional middleware can be passed as a nil variable.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mw := mws[i]; mw != nil {
			h = mw(h)
		}
	}
	return h
}

// When returns mw if on is set and nil otherwise, for use in Chain.
func When(on bool, mw Middleware) Middleware {
	if !on {
		return nil
	}
	return mw
}
