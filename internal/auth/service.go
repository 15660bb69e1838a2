// ABOUTME: Account registration and credential authentication
// ABOUTME: Issues bearer tokens after verifying email and password against the credential store

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/fieldbook/internal/store"
)

// Service errors
var (
	ErrEmailConflict      = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Password length bounds in bytes. bcrypt ignores input past 72 bytes.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// Outcomes reported to an AccountRecorder.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// AccountRecorder observes registration and login attempts.
type AccountRecorder interface {
	ObserveRegistration(outcome string)
	ObserveLogin(outcome string)
}

type noopAccountRecorder struct{}

func (noopAccountRecorder) ObserveRegistration(string) {}
func (noopAccountRecorder) ObserveLogin(string)        {}

// RegisterRequest carries the fields needed to create an account.
type RegisterRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

// UnmarshalJSON also accepts fullName and phoneNumber, the field names used
// by existing mobile clients. The snake_case names win when both are sent.
func (r *RegisterRequest) UnmarshalJSON(data []byte) error {
	type plain RegisterRequest
	var aux struct {
		plain
		FullNameAlt    string `json:"fullName"`
		PhoneNumberAlt string `json:"phoneNumber"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = RegisterRequest(aux.plain)
	if r.FullName == "" {
		r.FullName = aux.FullNameAlt
	}
	if r.PhoneNumber == "" {
		r.PhoneNumber = aux.PhoneNumberAlt
	}
	return nil
}

// ServiceConfig wires a Service to its collaborators.
type ServiceConfig struct {
	Accounts store.AccountStore
	Hasher   PasswordHasher
	Issuer   TokenIssuer
	Logger   *slog.Logger
	Recorder AccountRecorder
}

// Service registers accounts and exchanges credentials for tokens.
type Service struct {
	accounts store.AccountStore
	hasher   PasswordHasher
	issuer   TokenIssuer
	logger   *slog.Logger
	recorder AccountRecorder

	// dummyHash is verified against when the email is unknown, so a failed
	// lookup costs the same as a failed comparison.
	dummyHash string
}

// fallbackDummyHash is a bcrypt hash of a throwaway string at the default
// cost, used if the configured hasher cannot produce one.
const fallbackDummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// NewService creates a Service. Hasher defaults to BcryptHasher.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		accounts: cfg.Accounts,
		hasher:   cfg.Hasher,
		issuer:   cfg.Issuer,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
	if s.hasher == nil {
		s.hasher = BcryptHasher{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "accounts")
	if s.recorder == nil {
		s.recorder = noopAccountRecorder{}
	}

	hash, err := s.hasher.Hash("fieldbook-timing-equalizer")
	if err != nil {
		s.logger.Warn("hashing timing dummy failed, using fallback", "error", err)
		hash = fallbackDummyHash
	}
	s.dummyHash = hash
	return s
}

// Register creates an account with a hashed password. It returns
// ErrEmailConflict if the email is already registered (exact match), or a
// *store.ValidationError if a field is out of bounds.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*store.Account, error) {
	account, err := s.register(ctx, req)
	switch {
	case err == nil:
		s.recorder.ObserveRegistration(OutcomeSuccess)
	case errors.Is(err, ErrEmailConflict):
		s.recorder.ObserveRegistration(OutcomeConflict)
	case errors.Is(err, store.ErrValidation):
		s.recorder.ObserveRegistration(OutcomeInvalid)
	default:
		s.recorder.ObserveRegistration(OutcomeError)
	}
	return account, err
}

func (s *Service) register(ctx context.Context, req RegisterRequest) (*store.Account, error) {
	if len(req.Password) < MinPasswordLength || len(req.Password) > MaxPasswordLength {
		return nil, &store.ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be between %d and %d bytes", MinPasswordLength, MaxPasswordLength),
		}
	}

	_, err := s.accounts.GetAccountByEmail(ctx, req.Email)
	if err == nil {
		return nil, ErrEmailConflict
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up email: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	account := &store.Account{
		FullName:     req.FullName,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: hash,
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		// Lost a race with a concurrent registration
		if errors.Is(err, store.ErrEmailExists) {
			return nil, ErrEmailConflict
		}
		return nil, err
	}

	s.logger.Info("registered account", "account_id", account.ID)
	return account, nil
}

// Authenticate verifies the credentials and issues a token whose subject is
// the account ID. Unknown emails and wrong passwords both return
// ErrInvalidCredentials, after the same amount of hashing work.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Token, error) {
	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.hasher.Verify(password, s.dummyHash)
			s.recorder.ObserveLogin(OutcomeInvalid)
			return Token{}, ErrInvalidCredentials
		}
		s.recorder.ObserveLogin(OutcomeError)
		return Token{}, fmt.Errorf("looking up account: %w", err)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.recorder.ObserveLogin(OutcomeInvalid)
		s.logger.Debug("password mismatch", "account_id", account.ID)
		return Token{}, ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(account.ID)
	if err != nil {
		s.recorder.ObserveLogin(OutcomeError)
		return Token{}, err
	}

	s.recorder.ObserveLogin(OutcomeSuccess)
	return token, nil
}
