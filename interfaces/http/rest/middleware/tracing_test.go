package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"libreria/pkg/observability"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingOpensSegmentPerRequest(t *testing.T) {
	tracer := observability.NewTracer("libreria-test")

	var sawSegment bool
	handler := Tracing(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSegment = xray.GetSegment(r.Context()) != nil
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books", nil))

	require.True(t, sawSegment, "handler must see the segment in its context")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
