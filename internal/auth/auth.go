package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/postboard/internal/apperr"
	"github.com/alphabot-ai/postboard/internal/clock"
	"github.com/alphabot-ai/postboard/internal/model"
	"github.com/alphabot-ai/postboard/internal/store"
	"github.com/alphabot-ai/postboard/internal/token"
)

// DefaultBcryptCost matches bcrypt's own default.
const DefaultBcryptCost = bcrypt.DefaultCost

type Service struct {
	accounts   store.AccountStore
	tokens     *token.Codec
	clock      clock.Clock
	bcryptCost int
	logger     *slog.Logger
}

type Options struct {
	BcryptCost int
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Verified is the identity a valid bearer token resolves to.
type Verified struct {
	AccountID string
	ExpiresAt time.Time
}

type RegisterInput struct {
	Identifier  string
	Secret      string
	DisplayName string
}

type LoginResult struct {
	Account   model.PublicAccount
	Token     string
	ExpiresAt time.Time
}

// MeResult answers /me. Account is nil when the subject's account no
// longer exists; the token is still honoured until it expires.
type MeResult struct {
	AccountID string
	Account   *model.PublicAccount
}

func NewService(accounts store.AccountStore, tokens *token.Codec, opts Options) *Service {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = DefaultBcryptCost
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		accounts:   accounts,
		tokens:     tokens,
		clock:      opts.Clock,
		bcryptCost: opts.BcryptCost,
		logger:     opts.Logger,
	}
}

// Register creates an account. The lookup before insert gives the common
// case a clean error; the store's unique index on identifier settles
// concurrent registrations of the same identifier.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.PublicAccount, error) {
	if in.Identifier == "" {
		return model.PublicAccount{}, apperr.Validation("identifier is required")
	}
	if in.Secret == "" {
		return model.PublicAccount{}, apperr.Validation("secret is required")
	}

	_, err := s.accounts.FindAccountByIdentifier(ctx, in.Identifier)
	switch {
	case err == nil:
		return model.PublicAccount{}, apperr.ErrDuplicateIdentifier
	case !errors.Is(err, store.ErrNotFound):
		return model.PublicAccount{}, fmt.Errorf("lookup identifier: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Secret), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return model.PublicAccount{}, apperr.Validation("secret must be at most 72 bytes")
		}
		return model.PublicAccount{}, fmt.Errorf("hash secret: %w", err)
	}

	account := model.Account{
		ID:           uuid.NewString(),
		Identifier:   in.Identifier,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: hash,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.accounts.CreateAccount(ctx, &account); err != nil {
		if errors.Is(err, store.ErrDuplicateIdentifier) {
			return model.PublicAccount{}, apperr.ErrDuplicateIdentifier
		}
		return model.PublicAccount{}, fmt.Errorf("create account: %w", err)
	}
	s.logger.Info("account registered", "account_id", account.ID)
	return account.Public(), nil
}

func (s *Service) Login(ctx context.Context, identifier, secret string) (LoginResult, error) {
	if identifier == "" || secret == "" {
		return LoginResult{}, apperr.Validation("identifier and secret are required")
	}
	account, err := s.accounts.FindAccountByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, apperr.ErrNotFound
		}
		return LoginResult{}, fmt.Errorf("lookup identifier: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return LoginResult{}, apperr.ErrBadCredentials
		}
		return LoginResult{}, fmt.Errorf("compare secret: %w", err)
	}

	raw, claims, err := s.tokens.Issue(account.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Account: account.Public(), Token: raw, ExpiresAt: claims.Expiry().UTC()}, nil
}

// Authenticate verifies a bearer token. Every codec failure is reported
// as apperr.ErrUnauthenticated; the specific kind is only logged.
func (s *Service) Authenticate(ctx context.Context, bearer string) (Verified, error) {
	claims, err := s.tokens.Verify(bearer)
	if err != nil {
		s.logger.DebugContext(ctx, "token rejected", "kind", token.Kind(err), "error", err)
		return Verified{}, apperr.ErrUnauthenticated
	}
	return Verified{AccountID: claims.Subject, ExpiresAt: claims.Expiry().UTC()}, nil
}

func (s *Service) Me(ctx context.Context, accountID string) (MeResult, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return MeResult{AccountID: accountID}, nil
		}
		return MeResult{}, fmt.Errorf("get account: %w", err)
	}
	public := account.Public()
	return MeResult{AccountID: accountID, Account: &public}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", apperr.ErrUnauthenticated
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if raw == "" {
		return "", apperr.ErrUnauthenticated
	}
	return raw, nil
}

type subjectKey struct{}

// WithSubject binds the authenticated account id to ctx.
func WithSubject(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, subjectKey{}, accountID)
}

// SubjectFrom returns the account id bound by WithSubject.
func SubjectFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(subjectKey{}).(string)
	return id, ok && id != ""
}
