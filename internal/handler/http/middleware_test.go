package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedHandler(buf *bytes.Buffer) *Handler {
	return &Handler{logger: &logger.Logger{Logger: zerolog.New(buf)}}
}

func TestWithTraceID(t *testing.T) {
	tests := []struct {
		name        string
		incoming    string
		wantSame    bool
		wantNewUUID bool
	}{
		{name: "propagates caller trace id", incoming: "trace-from-client", wantSame: true},
		{name: "generates missing trace id", wantNewUUID: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newBufferedHandler(&buf)

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.FromRequest(r).Info().Msg("inside")
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/pairs", nil)
			if tt.incoming != "" {
				req.Header.Set(traceIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.withTraceID(next).ServeHTTP(rec, req)

			got := rec.Header().Get(traceIDHeader)
			assert.Equal(t, http.StatusNoContent, rec.Code)
			if tt.wantSame {
				assert.Equal(t, tt.incoming, got)
			}
			if tt.wantNewUUID {
				id, err := uuid.Parse(got)
				require.NoError(t, err)
				assert.Equal(t, uuid.Version(7), id.Version())
			}
			assert.Contains(t, buf.String(), `"trace_id":"`+got+`"`)
		})
	}
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	h := newBufferedHandler(&buf)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("hello"))
	})

	rec := httptest.NewRecorder()
	h.withTraceID(h.withLogging(next)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pairs/cal/sync", nil))

	log := buf.String()
	assert.Contains(t, log, `"method":"POST"`)
	assert.Contains(t, log, `"uri":"/api/pairs/cal/sync"`)
	assert.Contains(t, log, `"status":202`)
	assert.Contains(t, log, `"size":5`)
	assert.Contains(t, log, `"trace_id"`)
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec}

	_, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	w.WriteHeader(http.StatusTeapot)
	_, err = w.Write([]byte("de"))
	require.NoError(t, err)
	w.Flush()

	assert.Equal(t, http.StatusOK, w.status, "implicit 200 wins over a late WriteHeader")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, w.size)
	assert.Equal(t, "abcde", rec.Body.String())
	assert.True(t, rec.Flushed)
}
