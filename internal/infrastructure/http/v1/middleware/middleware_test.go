package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/core/apperror"
	appctx "clinicrx/internal/core/context"
	"clinicrx/internal/infrastructure/storage/memory"
)

func newTestEngine(store *memory.IdempotencyStore, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// Recovery runs inside ErrorHandler so a recovered panic still gets a body.
	r.Use(Trace(), Operator(), ErrorHandler(), Recovery(), Idempotency(store))
	r.POST("/things", h)
	return r
}

func doPost(r http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysCompletedResponse(t *testing.T) {
	store := memory.NewIdempotencyStore(time.Hour)
	calls := 0
	r := newTestEngine(store, func(c *gin.Context) {
		calls++
		body := []byte(`{"n":1}`)
		if key, s, ok := IdempotencyFromContext(c); ok {
			require.NoError(t, s.CompleteKey(c.Request.Context(), key, http.StatusCreated, "application/json", body))
		}
		c.Data(http.StatusCreated, "application/json", body)
	})

	first := doPost(r, "k-1", `{"a":1}`)
	second := doPost(r, "k-1", `{"a":1}`)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, `{"n":1}`, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
}

func TestIdempotency_DifferentBodyIsRejected(t *testing.T) {
	store := memory.NewIdempotencyStore(time.Hour)
	r := newTestEngine(store, func(c *gin.Context) {
		if key, s, ok := IdempotencyFromContext(c); ok {
			_ = s.CompleteKey(c.Request.Context(), key, http.StatusOK, "application/json", []byte(`{}`))
		}
		c.JSON(http.StatusOK, gin.H{})
	})

	require.Equal(t, http.StatusOK, doPost(r, "k-2", `{"a":1}`).Code)
	w := doPost(r, "k-2", `{"a":2}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Idempotency key mismatch")
}

func TestIdempotency_WithoutKeyRunsEveryTime(t *testing.T) {
	store := memory.NewIdempotencyStore(time.Hour)
	calls := 0
	r := newTestEngine(store, func(c *gin.Context) {
		calls++
		c.Status(http.StatusNoContent)
	})

	doPost(r, "", `{}`)
	doPost(r, "", `{}`)
	assert.Equal(t, 2, calls)
}

func TestErrorHandler_RendersAppErrorAndStoresFailure(t *testing.T) {
	store := memory.NewIdempotencyStore(time.Hour)
	calls := 0
	r := newTestEngine(store, func(c *gin.Context) {
		calls++
		_ = c.Error(apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity"))
		c.Abort()
	})

	first := doPost(r, "k-3", `{}`)
	assert.Equal(t, http.StatusBadRequest, first.Code)
	assert.JSONEq(t, `{"code":"VALIDATION_ERROR","message":"quantity must be positive","details":{"field":"quantity"}}`, first.Body.String())

	second := doPost(r, "k-3", `{}`)
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestRecovery_PanicBecomesInternalError(t *testing.T) {
	r := newTestEngine(memory.NewIdempotencyStore(time.Hour), func(c *gin.Context) {
		panic("boom")
	})

	w := doPost(r, "", `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), apperror.CodeInternal)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestOperator_SetsContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Operator())
	var got string
	r.GET("/who", func(c *gin.Context) {
		got = appctx.GetOperatorID(c.Request.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(HeaderOperatorID, " clerk-7 ")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "clerk-7", got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/who", nil))
	assert.Equal(t, "system", got)
}

func TestTrace_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Trace())
	var fromCtx string
	r.GET("/ping", func(c *gin.Context) {
		fromCtx = appctx.GetRequestID(c.Request.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", fromCtx)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
}
