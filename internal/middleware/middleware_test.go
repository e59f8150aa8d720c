package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/metrics"
	"storefront/internal/repository"
	"storefront/internal/security"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================
// helpers
// =====================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTokens(t *testing.T) *security.TokenService {
	t.Helper()
	s, err := security.NewTokenService("mw-secret", "HS256", 30*time.Minute, time.Hour)
	require.NoError(t, err)
	return s
}

func accessToken(t *testing.T, s *security.TokenService, userID int64, role string) string {
	t.Helper()
	raw, err := s.CreateAccessToken(security.TokenSubject{Username: "u", UserID: userID, Role: role}, 0)
	require.NoError(t, err)
	return raw
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Errors  []string        `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type memoryAuditRepo struct {
	mu   sync.Mutex
	rows []model.AuditTrail
	err  error
}

func (r *memoryAuditRepo) Create(_ context.Context, row *model.AuditTrail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, *row)
	return nil
}

func (r *memoryAuditRepo) List(context.Context, repository.AuditTrailFilter) ([]model.AuditTrail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AuditTrail(nil), r.rows...), nil
}

type failingDecoder struct{}

func (failingDecoder) Decode(string) (*security.Claims, error) {
	return nil, errors.New("keystore unavailable")
}

// =====================
// Authenticator
// =====================

func newAuthEcho(t *testing.T, dec security.TokenDecoder) *echo.Echo {
	t.Helper()
	auth := NewAuthenticator(dec, nil, discardLogger())

	e := echo.New()
	e.Use(auth.Middleware())
	whoami := func(c echo.Context) error {
		id, _ := UserID(c)
		role, _ := c.Get(CtxUserRoleKey).(string)
		return c.JSON(http.StatusOK, map[string]interface{}{"user_id": id, "role": role})
	}
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "root") })
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/products/", whoami)
	e.GET("/auth/me", whoami, auth.Require())
	e.GET("/admin", whoami, RequireRole(model.RoleAdmin))
	return e
}

func TestAuthenticator_ExemptPaths(t *testing.T) {
	e := newAuthEcho(t, newTokens(t))

	for _, path := range []string{"/", "/health"} {
		rec := serve(e, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

// "/"は完全一致だけ
func TestAuthenticator_RootDoesNotExemptEverything(t *testing.T) {
	auth := NewAuthenticator(newTokens(t), nil, discardLogger())

	assert.True(t, auth.IsExempt("/"))
	assert.True(t, auth.IsExempt("/auth/login"))
	assert.True(t, auth.IsExempt("/docs/index.html"))
	assert.False(t, auth.IsExempt("/products/"))
	assert.False(t, auth.IsExempt("/orders/initiate"))
}

func TestAuthenticator_Rejections(t *testing.T) {
	tokens := newTokens(t)
	expired, err := tokens.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }).
		CreateAccessToken(security.TokenSubject{Username: "u", UserID: 1, Role: "User"}, time.Hour)
	require.NoError(t, err)
	refresh, err := tokens.CreateRefreshToken(security.TokenSubject{Username: "u", UserID: 1, Role: "User"})
	require.NoError(t, err)

	cases := []struct {
		name    string
		header  string
		message string
		detail  string
	}{
		{"missing", "", "Authentication required", "Authorization header missing"},
		{"wrong scheme", "Basic abc", "Invalid authorization format", "Invalid authorization header format. Use 'Bearer <token>'"},
		{"no token", "Bearer ", "Invalid authorization format", "Invalid authorization header format. Use 'Bearer <token>'"},
		{"expired", "Bearer " + expired, "Token expired", "Token has expired, please login again"},
		{"garbage", "Bearer not.a.jwt", "Invalid token", "Token is invalid or malformed"},
		{"refresh token", "Bearer " + refresh, "Invalid token", "Token is invalid or malformed"},
	}

	e := newAuthEcho(t, tokens)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/products/", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			rec := serve(e, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tc.message, env.Message)
			assert.Equal(t, []string{tc.detail}, env.Errors)
			assert.Equal(t, "null", string(env.Data))
		})
	}
}

// 想定外のdecode失敗は500
func TestAuthenticator_UnexpectedDecodeFailure(t *testing.T) {
	e := newAuthEcho(t, failingDecoder{})

	req := httptest.NewRequest(http.MethodGet, "/products/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer whatever")
	rec := serve(e, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Authentication failed", decodeEnvelope(t, rec).Message)
}

func TestAuthenticator_AttachesIdentity(t *testing.T) {
	tokens := newTokens(t)
	e := newAuthEcho(t, tokens)

	req := httptest.NewRequest(http.MethodGet, "/products/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+accessToken(t, tokens, 42, "User"))
	rec := serve(e, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":42,"role":"User"}`, rec.Body.String())
}

// /auth/配下でもRequireを付けたルートは認証する
func TestAuthenticator_RequireOnExemptPrefix(t *testing.T) {
	tokens := newTokens(t)
	e := newAuthEcho(t, tokens)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+accessToken(t, tokens, 7, "User"))
	rec = serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":7,"role":"User"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	tokens := newTokens(t)
	e := newAuthEcho(t, tokens)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+accessToken(t, tokens, 1, model.RoleUser))
	rec := serve(e, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access forbidden", decodeEnvelope(t, rec).Message)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+accessToken(t, tokens, 1, model.RoleAdmin))
	rec = serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =====================
// Audit
// =====================

type auditHarness struct {
	e      *echo.Echo
	repo   *memoryAuditRepo
	tokens *security.TokenService
}

// audit -> auth の順（本番と同じ）
func newAuditHarness(t *testing.T, cfg AuditConfig) auditHarness {
	t.Helper()
	tokens := newTokens(t)
	repo := &memoryAuditRepo{}

	e := echo.New()
	e.Use(NewAudit(repo, tokens, cfg, discardLogger()).Middleware())
	e.Use(NewAuthenticator(tokens, nil, discardLogger()).Middleware())

	e.POST("/auth/login", func(c echo.Context) error {
		var in map[string]interface{}
		if err := json.NewDecoder(c.Request().Body).Decode(&in); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad json")
		}
		//ハンドラには元のボディが届く
		return c.JSON(http.StatusOK, map[string]interface{}{"echo_password": in["password"]})
	})
	e.POST("/payment/process", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "CAPTURED"})
	})
	e.GET("/products/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "yes"})
	})
	e.GET("/products/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Product not found")
	})
	e.GET("/big", func(c echo.Context) error {
		return c.String(http.StatusOK, strings.Repeat("x", 6000))
	})
	e.GET("/boom", func(c echo.Context) error {
		panic("kaboom")
	})
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/auth/stream", func(c echo.Context) error {
		c.Response().WriteHeader(http.StatusOK)
		for i := 0; i < 3; i++ {
			_, _ = c.Response().Write([]byte("chunk;"))
			c.Response().Flush()
		}
		return nil
	})

	return auditHarness{e: e, repo: repo, tokens: tokens}
}

func (h auditHarness) onlyRow(t *testing.T) model.AuditTrail {
	t.Helper()
	rows, _ := h.repo.List(context.Background(), repository.AuditTrailFilter{})
	require.Len(t, rows, 1)
	return rows[0]
}

func TestAudit_MasksSensitiveFieldsButHandlerSeesOriginal(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"secret"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(h.e, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"echo_password":"secret"}`, rec.Body.String())

	row := h.onlyRow(t)
	require.NotNil(t, row.RequestBody)
	assert.NotContains(t, *row.RequestBody, "secret")
	assert.JSONEq(t, `{"email":"a@example.com","password":"***MASKED***"}`, *row.RequestBody)
	assert.Equal(t, http.MethodPost, row.Method)
	assert.Equal(t, "/auth/login", row.Endpoint)
	assert.Equal(t, http.StatusOK, row.ResponseStatus)
}

func TestAudit_MasksCardDetailsNested(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})
	tok := accessToken(t, h.tokens, 5, "User")

	req := httptest.NewRequest(http.MethodPost, "/payment/process",
		strings.NewReader(`{"payment_id":1,"card":{"card_number":"4111111111111111","CVV":"123"},"expiry_date":"12/30"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	serve(h.e, req)

	row := h.onlyRow(t)
	require.NotNil(t, row.RequestBody)
	assert.NotContains(t, *row.RequestBody, "4111111111111111")
	assert.NotContains(t, *row.RequestBody, `"123"`)
	require.NotNil(t, row.UserID)
	assert.Equal(t, int64(5), *row.UserID)
}

// 認証で弾かれても監査は残り、actorはnil
func TestAudit_UnauthenticatedRequestHasNoActor(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})

	rec := serve(h.e, httptest.NewRequest(http.MethodGet, "/products/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	row := h.onlyRow(t)
	assert.Nil(t, row.UserID)
	assert.Equal(t, http.StatusUnauthorized, row.ResponseStatus)
	require.NotNil(t, row.ResponseBody)
	assert.Contains(t, *row.ResponseBody, "Authorization header missing")
}

func TestAudit_InvalidTokenIsAnonymous(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})

	req := httptest.NewRequest(http.MethodGet, "/products/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer nope")
	serve(h.e, req)

	assert.Nil(t, h.onlyRow(t).UserID)
}

func TestAudit_ExemptPathIsNotRecorded(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})

	rec := serve(h.e, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rows, _ := h.repo.List(context.Background(), repository.AuditTrailFilter{})
	assert.Empty(t, rows)
}

// handlerのエラーは描画後のstatusで残る
func TestAudit_HandlerErrorStatus(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})

	req := httptest.NewRequest(http.MethodGet, "/products/9", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+accessToken(t, h.tokens, 1, "User"))
	rec := serve(h.e, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	row := h.onlyRow(t)
	assert.Equal(t, http.StatusNotFound, row.ResponseStatus)
	require.NotNil(t, row.ResponseBody)
	assert.Contains(t, *row.ResponseBody, "Product not found")
}

func TestAudit_ResponseTruncated(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{Exempt: []string{"/health"}})

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+accessToken(t, h.tokens, 1, "User"))
	rec := serve(h.e, req)

	//クライアントには全部届く
	assert.Equal(t, 6000, rec.Body.Len())

	row := h.onlyRow(t)
	require.NotNil(t, row.ResponseBody)
	assert.Equal(t, strings.Repeat("x", 5000)+"... [TRUNCATED]", *row.ResponseBody)
}

func TestAudit_StreamingResponseIsPassedThrough(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})

	rec := serve(h.e, httptest.NewRequest(http.MethodGet, "/auth/stream", nil))
	assert.Equal(t, "chunk;chunk;chunk;", rec.Body.String())
	assert.True(t, rec.Flushed)

	row := h.onlyRow(t)
	require.NotNil(t, row.ResponseBody)
	assert.Equal(t, "chunk;chunk;chunk;", *row.ResponseBody)
}

func TestAudit_RawBodyTruncated(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(strings.Repeat("y", 1500)))
	req.Header.Set(echo.HeaderContentType, echo.MIMETextPlain)
	serve(h.e, req)

	row := h.onlyRow(t)
	require.NotNil(t, row.RequestBody)
	assert.Equal(t, strings.Repeat("y", 1000), *row.RequestBody)
}

func TestAudit_FormBodyMasked(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("email=a%40example.com&password=secret"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	serve(h.e, req)

	row := h.onlyRow(t)
	require.NotNil(t, row.RequestBody)
	assert.NotContains(t, *row.RequestBody, "secret")
	assert.Contains(t, *row.RequestBody, "MASKED")
}

// panicは500で残して投げ直す
func TestAudit_PanicRecordedAndRethrown(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+accessToken(t, h.tokens, 3, "User"))

	assert.PanicsWithValue(t, "kaboom", func() {
		serve(h.e, req)
	})

	row := h.onlyRow(t)
	assert.Equal(t, http.StatusInternalServerError, row.ResponseStatus)
	require.NotNil(t, row.ResponseBody)
	assert.JSONEq(t, `{"error":"kaboom"}`, *row.ResponseBody)
	require.NotNil(t, row.UserID)
	assert.Equal(t, int64(3), *row.UserID)
}

// 保存に失敗しても応答は変わらない
func TestAudit_PersistenceFailureIsSwallowed(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})
	h.repo.err = errors.New("db down")

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"password":"x"}`))
	rec := serve(h.e, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAudit_ClientIPAndRequestID(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderXForwardedFor, "203.0.113.7, 10.0.0.1")
	req.Header.Set(echo.HeaderXRealIP, "198.51.100.1")
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	req.Header.Set("User-Agent", "tester/1.0")
	serve(h.e, req)

	row := h.onlyRow(t)
	assert.Equal(t, "203.0.113.7", row.ClientIP)
	assert.Equal(t, "req-1", row.RequestID)
	assert.Equal(t, "tester/1.0", row.UserAgent)
}

func TestClientIP_Fallbacks(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRealIP, "198.51.100.1")
	assert.Equal(t, "198.51.100.1", clientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", clientIP(req))
}

// 上限を超えたchunkedボディは413で止め、handlerには渡さない
func TestAudit_BodyLimitErrorIsNotSwallowed(t *testing.T) {
	repo := &memoryAuditRepo{}
	tokens := newTokens(t)

	e := echo.New()
	e.Use(echomw.BodyLimit("10B"))
	e.Use(NewAudit(repo, tokens, AuditConfig{}, discardLogger()).Middleware())

	called := false
	e.POST("/auth/login", func(c echo.Context) error {
		called = true
		raw, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, string(raw))
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(strings.Repeat("a", 50)))
	req.ContentLength = -1
	rec := serve(e, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, called)

	rows, _ := repo.List(context.Background(), repository.AuditTrailFilter{})
	require.Len(t, rows, 1)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rows[0].ResponseStatus)
}

// 大きな数値IDも丸めずに残す
func TestAudit_KeepsLargeNumbersExact(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"payment_id":12345678901234567890,"password":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	serve(h.e, req)

	row := h.onlyRow(t)
	require.NotNil(t, row.RequestBody)
	assert.Contains(t, *row.RequestBody, "12345678901234567890")
	assert.Contains(t, *row.RequestBody, maskedValue)
}

func TestAudit_TrailingGarbageIsRawText(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"a":1} tail`))
	req.Header.Set(echo.HeaderContentType, echo.MIMETextPlain)
	serve(h.e, req)

	row := h.onlyRow(t)
	require.NotNil(t, row.RequestBody)
	assert.Equal(t, `{"a":1} tail`, *row.RequestBody)
}

// refresh tokenではactorにならない（APIでも認証されないため）
func TestAudit_RefreshTokenIsNotAnActor(t *testing.T) {
	h := newAuditHarness(t, AuditConfig{})
	refresh, err := h.tokens.CreateRefreshToken(security.TokenSubject{Username: "u", UserID: 9, Role: "User"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+refresh)
	serve(h.e, req)

	assert.Nil(t, h.onlyRow(t).UserID)
}

// =====================
// Metrics
// =====================

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	e := echo.New()
	e.Use(Metrics(m))
	e.GET("/products/:id", func(c echo.Context) error {
		if c.Param("id") == "0" {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return c.NoContent(http.StatusOK)
	})

	serve(e, httptest.NewRequest(http.MethodGet, "/products/1", nil))
	serve(e, httptest.NewRequest(http.MethodGet, "/products/2", nil))
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/products/0", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/products/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/products/:id", "404")))
}
