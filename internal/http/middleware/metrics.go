package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// HTTPObserver records one served request.
type HTTPObserver interface {
	ObserveHTTP(route string, code int)
}

// Metrics counts requests by route pattern and status code. Unmatched
// requests are counted under "unmatched" to keep label cardinality bounded.
func Metrics(observer HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if observer == nil {
				next.ServeHTTP(w, r)
				return
			}
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			observer.ObserveHTTP(route, status)
		})
	}
}
