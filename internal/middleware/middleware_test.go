package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dentallab-api/internal/handler"
	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/service/audit"
	"github.com/jwalitptl/dentallab-api/pkg/auth"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
)

type stubResolver map[string]*model.Account

func (s stubResolver) Resolve(_ context.Context, subject string) (*model.Account, error) {
	if acc, ok := s[subject]; ok {
		return acc, nil
	}
	return nil, apperrors.Unauthorized(nil)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAuthenticateAndResolve(t *testing.T) {
	verifier := auth.NewVerifier("secret", "dentallab")
	lab := &model.Laboratory{Base: model.Base{ID: uuid.New()}, Name: "Prime", Active: true}
	mw := NewAuthMiddleware(verifier, stubResolver{"lab-1": model.LabAccount(lab)})

	engine := gin.New()
	engine.GET("/me", mw.Authenticate(), mw.RequireAccount(), func(c *gin.Context) {
		acc, err := handler.CurrentAccount(c)
		require.NoError(t, err)
		c.String(http.StatusOK, acc.DisplayName())
	})

	token, err := verifier.Issue("lab-1", "", "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(engine, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Prime", w.Body.String())

	// Websocket clients pass the token as a query parameter.
	w = serve(engine, httptest.NewRequest(http.MethodGet, "/me?access_token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(engine, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, serve(engine, req).Code)

	unknown, err := verifier.Issue("someone-else", "", "", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+unknown)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, req).Code)
}

func TestRateLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})
	engine := gin.New()
	engine.GET("/", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	newReq := func(ip string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		return req
	}

	assert.Equal(t, http.StatusOK, serve(engine, newReq("10.0.0.1")).Code)
	assert.Equal(t, http.StatusOK, serve(engine, newReq("10.0.0.1")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, newReq("10.0.0.1")).Code)
	assert.Equal(t, http.StatusOK, serve(engine, newReq("10.0.0.2")).Code)
}

func TestCORS(t *testing.T) {
	engine := gin.New()
	engine.Use(CORS(NewCORSConfig([]string{"https://portal.example"})))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://portal.example")
	w := serve(engine, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://portal.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, serve(engine, req).Code)
}

func TestTimeoutAnswersWhenHandlerSilent(t *testing.T) {
	engine := gin.New()
	engine.Use(Timeout(TimeoutConfig{Duration: 10 * time.Millisecond}))
	engine.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	engine.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), "Timeout")

	assert.Equal(t, http.StatusOK, serve(engine, httptest.NewRequest(http.MethodGet, "/fast", nil)).Code)
}

func TestRequestIDPropagates(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	var seen string
	engine.GET("/", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(audit.RequestIDKey{}).(string)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "req-42")
	w := serve(engine, req)
	assert.Equal(t, "req-42", w.Header().Get(HeaderXRequestID))
	assert.Equal(t, "req-42", seen)

	w = serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))
}

func TestRecoveryReturnsInternal(t *testing.T) {
	engine := gin.New()
	engine.Use(Recovery())
	engine.GET("/", func(c *gin.Context) { panic("boom") })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestSizeLimitRejectsLargeBodies(t *testing.T) {
	cfg := DefaultSizeLimitConfig()
	cfg.MaxBodySize = 8
	engine := gin.New()
	engine.Use(SizeLimit(cfg))
	engine.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"too long"}`))
	assert.Equal(t, http.StatusRequestEntityTooLarge, serve(engine, req).Code)
}
