package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/repository"
	"storefront/internal/security"
)

// tokenの発行と読み取り（security.TokenServiceが満たす）
type TokenIssuer interface {
	CreateAccessToken(sub security.TokenSubject, ttl time.Duration) (string, error)
	CreateRefreshToken(sub security.TokenSubject) (string, error)
	Decode(raw string) (*security.Claims, error)
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Email    string `json:"email" validate:"required,email,max=255"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

// /auth/me
type UserProfile struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	RegisteredOn string `json:"registered_on"`
}

type AuthUsecase struct {
	users     repository.UserRepository
	hasher    security.PasswordHasher
	tokens    TokenIssuer
	validator InputValidator
	now       func() time.Time
}

// DI
func NewAuthUsecase(
	users repository.UserRepository,
	hasher security.PasswordHasher,
	tokens TokenIssuer,
	validator InputValidator,
) *AuthUsecase {
	return &AuthUsecase{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		validator: validator,
		now:       time.Now,
	}
}

func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (TokenPair, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateInput(u.validator, in); err != nil {
		return TokenPair{}, err
	}

	//username/emailどちらかが使われていたら400
	exists, err := u.users.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return TokenPair{}, Unexpected(err)
	}
	if exists {
		return TokenPair{}, Conflict(http.StatusBadRequest, "User already exists")
	}

	hashed, err := u.hasher.Hash(in.Password)
	if err != nil {
		return TokenPair{}, Unexpected(err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hashed,
		Role:         model.RoleUser,
		RegisteredOn: u.now().UTC().Format(time.RFC3339Nano),
	}
	if err := u.users.Create(ctx, user); err != nil {
		//確認後に同時登録された場合
		if errors.Is(err, repository.ErrDuplicate) {
			return TokenPair{}, Conflict(http.StatusBadRequest, "User already exists")
		}
		return TokenPair{}, Unexpected(err)
	}

	return u.issue(security.TokenSubject{
		Username: user.Username,
		UserID:   user.ID,
		Role:     user.Role,
	})
}

func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (TokenPair, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateInput(u.validator, in); err != nil {
		return TokenPair{}, err
	}

	user, err := u.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, Unauthorized("Invalid credentials")
	}
	if err != nil {
		return TokenPair{}, Unexpected(err)
	}
	//ユーザー有無とパスワード違いは同じ応答
	if !u.hasher.Verify(in.Password, user.PasswordHash) {
		return TokenPair{}, Unauthorized("Invalid credentials")
	}

	return u.issue(security.TokenSubject{
		Username: user.Username,
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
	})
}

// refresh tokenから新しいペアを返す。失敗はすべて403
func (u *AuthUsecase) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := u.tokens.Decode(strings.TrimSpace(refreshToken))
	if err != nil {
		return TokenPair{}, Forbidden("Invalid refresh token")
	}
	if claims.TokenUse != security.TokenUseRefresh {
		return TokenPair{}, Forbidden("Invalid refresh token")
	}

	user, err := u.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, Forbidden("Invalid refresh token")
	}
	if err != nil {
		return TokenPair{}, Unexpected(err)
	}

	return u.issue(security.TokenSubject{
		Username: user.Username,
		UserID:   user.ID,
		Role:     user.Role,
	})
}

func (u *AuthUsecase) Me(ctx context.Context, userID int64) (UserProfile, error) {
	if userID <= 0 {
		return UserProfile{}, Unauthorized("Authentication required")
	}
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return UserProfile{}, NotFound("User not found")
	}
	if err != nil {
		return UserProfile{}, Unexpected(err)
	}
	return UserProfile{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		RegisteredOn: user.RegisteredOn,
	}, nil
}

func (u *AuthUsecase) issue(sub security.TokenSubject) (TokenPair, error) {
	access, err := u.tokens.CreateAccessToken(sub, 0)
	if err != nil {
		return TokenPair{}, Unexpected(err)
	}
	refresh, err := u.tokens.CreateRefreshToken(sub)
	if err != nil {
		return TokenPair{}, Unexpected(err)
	}
	return TokenPair{
		AccessToken:  access,
		TokenType:    "bearer",
		RefreshToken: refresh,
	}, nil
}
