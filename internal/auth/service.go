package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/campfire/backend/internal/models"
)

const (
	magicLinkTTL = 15 * time.Minute

	// linkPurpose tags magic-link JWTs so other tokens signed with the same
	// secret can never be redeemed as logins.
	linkPurpose = "magic-link"
)

// ErrInvalidLinkToken is returned for expired, tampered, or re-purposed
// magic-link tokens.
var ErrInvalidLinkToken = errors.New("invalid or expired login link")

// AccountStore is the account lookup the service needs.
type AccountStore interface {
	GetOrCreateByEmail(ctx context.Context, email string) (*models.Account, error)
}

// SessionStore is the session persistence the service needs; *Repository
// satisfies it.
type SessionStore interface {
	CreateSession(ctx context.Context, tokenHash string, accountID uuid.UUID, expiresAt time.Time) error
	GetSessionAccount(ctx context.Context, tokenHash string) (uuid.UUID, error)
	DeleteSession(ctx context.Context, tokenHash string) error
}

// EnqueueEmailFunc hands a magic-link email off for background delivery.
// Wired in main as a closure over the river client.
type EnqueueEmailFunc func(ctx context.Context, email, link string) error

type Service interface {
	// RequestMagicLink signs a short-lived link token and enqueues delivery.
	// It succeeds whether or not an account exists for the email, so callers
	// leak nothing about membership.
	RequestMagicLink(ctx context.Context, email string) error

	// RedeemMagicLink validates a link token, creates the account on first
	// login, and issues an opaque session token.
	RedeemMagicLink(ctx context.Context, token string) (string, *models.Account, error)

	// ResolveSession maps a session token to its account.
	ResolveSession(ctx context.Context, token string) (uuid.UUID, error)

	Logout(ctx context.Context, token string) error
}

type service struct {
	repo       SessionStore
	accounts   AccountStore
	enqueue    EnqueueEmailFunc
	secret     []byte
	linkBase   string
	sessionTTL time.Duration
}

// NewService creates the auth service. linkBase is the application origin
// that magic links point at.
func NewService(repo SessionStore, accounts AccountStore, enqueue EnqueueEmailFunc, secret, linkBase string, sessionTTL time.Duration) *service {
	return &service{
		repo:       repo,
		accounts:   accounts,
		enqueue:    enqueue,
		secret:     []byte(secret),
		linkBase:   linkBase,
		sessionTTL: sessionTTL,
	}
}

var _ Service = (*service)(nil)

type linkClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

func (s *service) RequestMagicLink(ctx context.Context, email string) error {
	c := linkClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(magicLinkTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Purpose: linkPurpose,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return err
	}
	link := s.linkBase + "/login?token=" + url.QueryEscape(tok)
	return s.enqueue(ctx, email, link)
}

func (s *service) RedeemMagicLink(ctx context.Context, token string) (string, *models.Account, error) {
	tok, err := jwt.ParseWithClaims(token, &linkClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", nil, ErrInvalidLinkToken
	}
	c, ok := tok.Claims.(*linkClaims)
	if !ok || !tok.Valid || c.Purpose != linkPurpose || c.Subject == "" {
		return "", nil, ErrInvalidLinkToken
	}

	acc, err := s.accounts.GetOrCreateByEmail(ctx, c.Subject)
	if err != nil {
		return "", nil, err
	}

	sessionToken, err := randomToken()
	if err != nil {
		return "", nil, err
	}
	if err := s.repo.CreateSession(ctx, hashToken(sessionToken), acc.ID, time.Now().UTC().Add(s.sessionTTL)); err != nil {
		return "", nil, err
	}
	return sessionToken, acc, nil
}

func (s *service) ResolveSession(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrSessionNotFound
	}
	return s.repo.GetSessionAccount(ctx, hashToken(token))
}

func (s *service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.repo.DeleteSession(ctx, hashToken(token))
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
