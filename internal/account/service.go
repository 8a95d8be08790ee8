// Package account provides email/password accounts with refresh-token
// sessions and password reset by email.
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"moodsun/api/internal/auth"
	"moodsun/api/internal/session"
	"moodsun/api/internal/store"
)

const minPasswordLength = 8

var (
	ErrInvalidInput        = errors.New("invalid email or password format")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrUnauthorized        = errors.New("unauthorized")
)

// Lifecycle is the engine surface accounts need.
type Lifecycle interface {
	CreateAccount(ctx context.Context, account store.Account) (store.Account, error)
	DeleteAccount(ctx context.Context, accountID string) ([]string, error)
}

type Sessions interface {
	SaveRefreshSession(ctx context.Context, tokenHash, accountID, email string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (session.TokenData, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccountSessions(ctx context.Context, accountID string) error
	SaveResetToken(ctx context.Context, tokenHash, accountID string, ttl time.Duration) error
	ConsumeResetToken(ctx context.Context, tokenHash string) (string, error)
	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type Mailer interface {
	SendPasswordReset(to, resetURL string, validFor time.Duration) error
}

type ImageStore interface {
	Destroy(ctx context.Context, ref string) error
}

type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	PublicURL  string
}

type Service struct {
	accounts  store.Collection[store.Account]
	lifecycle Lifecycle
	sessions  Sessions
	mailer    Mailer
	images    ImageStore
	config    Config
	log       *zap.Logger
	now       func() time.Time
}

func NewService(accounts store.Collection[store.Account], lifecycle Lifecycle, sessions Sessions, mailer Mailer, images ImageStore, config Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		accounts:  accounts,
		lifecycle: lifecycle,
		sessions:  sessions,
		mailer:    mailer,
		images:    images,
		config:    config,
		log:       log.Named("account"),
		now:       time.Now,
	}
}

// Tokens is the session handed to a client after sign-up, sign-in or refresh.
type Tokens struct {
	AccountID    string    `json:"accountId"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// SignUp creates the account with its default groups and opens a session.
func (s *Service) SignUp(ctx context.Context, email, password string) (Tokens, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Tokens{}, err
	}
	if len(password) < minPasswordLength {
		return Tokens{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Tokens{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.lifecycle.CreateAccount(ctx, store.Account{
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	})
	if errors.Is(err, store.ErrDuplicateKey) {
		return Tokens{}, ErrEmailTaken
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("create account: %w", err)
	}
	s.log.Info("account created", zap.String("account", created.ID))
	return s.openSession(ctx, created.ID, created.Email)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Tokens, error) {
	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return Tokens{}, err
	}
	if account == nil {
		return Tokens{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Tokens{}, ErrInvalidCredentials
	}
	return s.openSession(ctx, account.ID, account.Email)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, ErrInvalidRefreshToken
	}
	hash := auth.HashToken(refreshToken)
	data, err := s.sessions.LookupRefreshSession(ctx, hash)
	if errors.Is(err, session.ErrTokenNotFound) {
		return Tokens{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return Tokens{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, hash); err != nil {
		return Tokens{}, err
	}
	return s.openSession(ctx, data.AccountID, data.Email)
}

// Logout revokes the refresh token and blocks the access token until it
// expires.
func (s *Service) Logout(ctx context.Context, claims auth.Claims, refreshToken string) error {
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			return err
		}
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return s.sessions.RevokeAccessToken(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Authenticate validates an access token and checks it was not revoked.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (auth.Claims, error) {
	claims, err := auth.ParseToken(s.config.Secret, accessToken)
	if err != nil {
		return auth.Claims{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return auth.Claims{}, err
	}
	if revoked {
		return auth.Claims{}, ErrUnauthorized
	}
	return claims, nil
}

// RequestPasswordReset mails a reset link. Unknown emails succeed silently
// so the endpoint does not reveal which addresses have accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.findByEmail(ctx, email)
	if err != nil || account == nil {
		return err
	}
	token, err := generateToken()
	if err != nil {
		return err
	}
	if err := s.sessions.SaveResetToken(ctx, auth.HashToken(token), account.ID, s.config.ResetTTL); err != nil {
		return err
	}
	link := strings.TrimRight(s.config.PublicURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	if err := s.mailer.SendPasswordReset(account.Email, link, s.config.ResetTTL); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	s.log.Info("password reset requested", zap.String("account", account.ID))
	return nil
}

// ResetPassword sets a new password and ends every open session.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	accountID, err := s.sessions.ConsumeResetToken(ctx, auth.HashToken(token))
	if errors.Is(err, session.ErrTokenNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}

	found, err := s.accounts.Find(ctx, store.Filter{IDs: []string{accountID}, AccountID: accountID})
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if len(found) == 0 {
		return ErrInvalidResetToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	account := found[0]
	account.PasswordHash = string(hash)
	n, err := s.accounts.ReplaceMany(ctx, []store.Account{account})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("update password: account %s not updated", accountID)
	}
	return s.sessions.RevokeAccountSessions(ctx, accountID)
}

// DeleteAccount removes the account and all of its data, then releases the
// images its mood entries held. Image failures are logged, not returned.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	images, err := s.lifecycle.DeleteAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.sessions.RevokeAccountSessions(ctx, accountID); err != nil {
		s.log.Warn("revoke sessions of deleted account", zap.String("account", accountID), zap.Error(err))
	}
	if s.images == nil {
		return nil
	}
	for _, ref := range images {
		if err := s.images.Destroy(ctx, ref); err != nil {
			s.log.Warn("destroy image of deleted account", zap.String("account", accountID), zap.String("image", ref), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) openSession(ctx context.Context, accountID, email string) (Tokens, error) {
	access, claims, err := auth.IssueToken(s.config.Secret, accountID, email, s.config.AccessTTL)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := generateToken()
	if err != nil {
		return Tokens{}, err
	}
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), accountID, email, s.now().Add(s.config.RefreshTTL)); err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AccountID:    accountID,
		Email:        email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*store.Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, nil
	}
	found, err := s.accounts.Find(ctx, store.Filter{Email: email})
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: %q is not an email address", ErrInvalidInput, email)
	}
	return email, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
