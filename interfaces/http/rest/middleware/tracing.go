package middleware

import (
	"net/http"

	"libreria/pkg/observability"
)

// Tracing opens a trace segment for every request and threads it through
// the request context, so downstream code can attach subsegments.
func Tracing(tracer *observability.Tracer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, seg := tracer.StartSegment(r.Context(), r.Method)
			defer seg.Close(nil)

			tracer.AddAnnotation(ctx, "path", r.URL.Path)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
