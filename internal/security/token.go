package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// 有効期限切れ
	ErrExpiredCredential = errors.New("credential expired")
	// 署名違い・アルゴリズム違い・まだ有効でない など
	ErrInvalidCredential = errors.New("invalid credential")
	// JWTとして読めない、またはclaimsが足りない
	ErrMalformedCredential = errors.New("malformed credential")
)

// tokenの用途
type TokenUse string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

// JWTに埋め込む値
type Claims struct {
	UserID   int64    `json:"user_id"`
	Role     string   `json:"role"`
	Email    string   `json:"email,omitempty"`
	TokenUse TokenUse `json:"token_use"`
	jwt.RegisteredClaims
}

// 発行時の入力（subはusername）
type TokenSubject struct {
	Username string
	UserID   int64
	Role     string
	Email    string
}

// tokenを読むだけの約束（middlewareはこれだけに依存する）
type TokenDecoder interface {
	Decode(raw string) (*Claims, error)
}

type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// DI。algorithmはHS256/HS384/HS512のどれか
func NewTokenService(secret string, algorithm string, accessTTL time.Duration, refreshTTL time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok || method == nil {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	return &TokenService{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// テスト用に時計を差し替える
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// access token発行。ttl<=0なら設定値
func (s *TokenService) CreateAccessToken(sub TokenSubject, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.accessTTL
	}
	return s.sign(sub, TokenUseAccess, ttl)
}

// refresh token発行（期限は必ず付ける）
func (s *TokenService) CreateRefreshToken(sub TokenSubject) (string, error) {
	return s.sign(sub, TokenUseRefresh, s.refreshTTL)
}

func (s *TokenService) sign(sub TokenSubject, use TokenUse, ttl time.Duration) (string, error) {
	now := s.now()

	claims := Claims{
		UserID:   sub.UserID,
		Role:     sub.Role,
		Email:    sub.Email,
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sub.Username,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	t := jwt.NewWithClaims(s.method, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// 署名と（あれば）期限を検証してclaimsを返す
func (s *TokenService) Decode(raw string) (*Claims, error) {
	claims := &Claims{}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{s.method.Alg()}))
	token, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		//署名違いは期限切れより優先する
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedCredential
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredCredential
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
		}
	}
	if token == nil || !token.Valid {
		return nil, ErrInvalidCredential
	}

	//必要なclaimが無いtokenは読めない扱い
	if claims.UserID <= 0 || claims.Subject == "" || claims.Role == "" {
		return nil, ErrMalformedCredential
	}
	if claims.TokenUse == "" {
		claims.TokenUse = TokenUseAccess
	}

	return claims, nil
}
