package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"storefront/internal/domain/model"
	"storefront/internal/repository"
	"storefront/internal/security"

	"github.com/labstack/echo/v4"
)

const (
	maskedValue     = "***MASKED***"
	truncatedMarker = "... [TRUNCATED]"
)

// 監査しないパス（前方一致）
var DefaultAuditExemptions = []string{
	"/docs",
	"/redoc",
	"/openapi.json",
	"/favicon.ico",
	"/health",
	"/metrics",
}

// 保存前に伏せるキー（小文字で比較）
var sensitiveFields = map[string]struct{}{
	"password":    {},
	"card_number": {},
	"cvv":         {},
}

type AuditConfig struct {
	Exempt []string
	//保存するリクエストボディの上限
	RequestBodyLimit int
	//保存するレスポンスボディの上限
	ResponseBodyLimit int
	//保存のタイムアウト（リクエストのcancelとは切り離す）
	PersistTimeout time.Duration
}

// リクエスト毎に1行AuditTrailを残す。保存失敗はログだけ
type Audit struct {
	trails repository.AuditTrailRepository
	tokens security.TokenDecoder
	cfg    AuditConfig
	log    *slog.Logger
}

func NewAudit(trails repository.AuditTrailRepository, tokens security.TokenDecoder, cfg AuditConfig, log *slog.Logger) *Audit {
	if cfg.Exempt == nil {
		cfg.Exempt = DefaultAuditExemptions
	}
	if cfg.RequestBodyLimit <= 0 {
		cfg.RequestBodyLimit = 1000
	}
	if cfg.ResponseBodyLimit <= 0 {
		cfg.ResponseBodyLimit = 5000
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	return &Audit{trails: trails, tokens: tokens, cfg: cfg, log: log}
}

func (a *Audit) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			if matchPath(a.cfg.Exempt, req.URL.Path) {
				return next(c)
			}

			start := time.Now()
			row := &model.AuditTrail{
				UserID:    a.actor(req),
				ClientIP:  clientIP(req),
				Method:    req.Method,
				Endpoint:  limitText(req.URL.Path, 255),
				UserAgent: limitText(req.UserAgent(), 512),
				RequestID: limitText(requestID(c), 64),
			}

			//ボディは1回しか読めないので控えてから戻す
			var readErr error
			if req.Body != nil && req.Body != http.NoBody {
				var raw []byte
				raw, readErr = io.ReadAll(req.Body)
				_ = req.Body.Close()
				req.Body = io.NopCloser(bytes.NewReader(raw))
				row.RequestBody = a.requestSnapshot(raw, req.Header.Get(echo.HeaderContentType))
			}

			tee := &bodyTee{ResponseWriter: c.Response().Writer, limit: a.cfg.ResponseBodyLimit}
			c.Response().Writer = tee

			//panicも500として残してから投げ直す
			defer func() {
				if r := recover(); r != nil {
					row.ResponseStatus = http.StatusInternalServerError
					row.ResponseBody = errorBody(fmt.Sprint(r))
					row.ExecutionTimeMs = time.Since(start).Milliseconds()
					a.persist(req.Context(), row)
					panic(r)
				}
			}()

			//読めなかった（BodyLimit超過など）ボディはhandlerに渡さない
			if readErr != nil {
				err = readErr
			} else {
				err = next(c)
			}
			if err != nil {
				//ここで描画して実際に返したstatus/bodyを残す
				c.Error(err)
			}

			row.ResponseStatus = c.Response().Status
			if !c.Response().Committed && err != nil {
				row.ResponseStatus = http.StatusInternalServerError
				row.ResponseBody = errorBody(err.Error())
			} else {
				row.ResponseBody = tee.snapshot()
			}
			row.ExecutionTimeMs = time.Since(start).Milliseconds()

			a.persist(req.Context(), row)
			return err
		}
	}
}

// 失敗しても本処理には影響させない
func (a *Audit) persist(parent context.Context, row *model.AuditTrail) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.cfg.PersistTimeout)
	defer cancel()

	if err := a.trails.Create(ctx, row); err != nil {
		a.log.Error("failed to save audit record",
			slog.String("endpoint", row.Endpoint),
			slog.Int("status", row.ResponseStatus),
			slog.Any("error", err),
		)
	}
}

// tokenが読めなければ匿名（nil）
func (a *Audit) actor(req *http.Request) *int64 {
	authz := req.Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil
	}
	claims, err := a.tokens.Decode(strings.TrimSpace(parts[1]))
	if err != nil || claims.UserID <= 0 || claims.TokenUse != security.TokenUseAccess {
		return nil
	}
	id := claims.UserID
	return &id
}

func (a *Audit) requestSnapshot(raw []byte, contentType string) *string {
	if len(raw) == 0 {
		return nil
	}

	if decoded, ok := decodeJSON(raw); ok {
		out, err := json.Marshal(maskSensitive(decoded))
		if err == nil {
			s := capWithMarker(string(out), a.cfg.RequestBodyLimit)
			return &s
		}
	}

	if strings.HasPrefix(contentType, echo.MIMEApplicationForm) {
		if values, err := url.ParseQuery(string(raw)); err == nil {
			for k := range values {
				if isSensitive(k) {
					values.Set(k, maskedValue)
				}
			}
			s := capWithMarker(values.Encode(), a.cfg.RequestBodyLimit)
			return &s
		}
	}

	//JSONでなければ生テキストを切り詰めるだけ
	s := limitText(strings.ToValidUTF8(string(raw), ""), a.cfg.RequestBodyLimit)
	return &s
}

// 数値はjson.Numberのまま（大きなIDを丸めない）。後ろにゴミがあればJSONではない
func decodeJSON(raw []byte) (interface{}, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return decoded, true
}

func maskSensitive(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			if isSensitive(k) {
				t[k] = maskedValue
				continue
			}
			t[k] = maskSensitive(child)
		}
		return t
	case []interface{}:
		for i, child := range t {
			t[i] = maskSensitive(child)
		}
		return t
	default:
		return v
	}
}

func isSensitive(key string) bool {
	_, ok := sensitiveFields[strings.ToLower(key)]
	return ok
}

// X-Forwarded-Forの先頭 > X-Real-IP > 接続元
func clientIP(req *http.Request) string {
	if xff := req.Header.Get(echo.HeaderXForwardedFor); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return limitText(first, 45)
		}
	}
	if realIP := strings.TrimSpace(req.Header.Get(echo.HeaderXRealIP)); realIP != "" {
		return limitText(realIP, 45)
	}
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil && host != "" {
		return limitText(host, 45)
	}
	if req.RemoteAddr != "" {
		return limitText(req.RemoteAddr, 45)
	}
	return "unknown"
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

func errorBody(msg string) *string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	s := string(out)
	return &s
}

// runeの途中で切らない
func limitText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func capWithMarker(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return limitText(s, n) + truncatedMarker
}

// レスポンスをそのまま流しつつ先頭limitバイトだけ控える
type bodyTee struct {
	http.ResponseWriter
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (t *bodyTee) Write(b []byte) (int, error) {
	room := t.limit - t.buf.Len()
	switch {
	case room >= len(b):
		t.buf.Write(b)
	case room > 0:
		t.buf.Write(b[:room])
		t.truncated = true
	case len(b) > 0:
		t.truncated = true
	}
	return t.ResponseWriter.Write(b)
}

// ストリーミング応答でもFlushを通す
func (t *bodyTee) Flush() {
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (t *bodyTee) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}

func (t *bodyTee) snapshot() *string {
	if t.buf.Len() == 0 && !t.truncated {
		return nil
	}
	s := limitText(strings.ToValidUTF8(t.buf.String(), ""), t.limit)
	if t.truncated {
		s += truncatedMarker
	}
	return &s
}
