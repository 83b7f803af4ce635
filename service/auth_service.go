package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
)

const (
	DefaultChallengeWindow     = 5 * time.Minute
	DefaultChallengeFutureSkew = time.Minute
)

// RegisterRequest carries a signed registration challenge
type RegisterRequest struct {
	Address   string
	Role      string
	Signature string // 0x-prefixed 65 byte personal_sign signature
	Message   string // challenge text that was signed
	Profile   core.Profile
}

// LoginRequest carries a signed login challenge
type LoginRequest struct {
	Address   string
	Signature string
	Message   string
}

// AuthOptions tunes challenge verification
type AuthOptions struct {
	ChallengeWindow     time.Duration
	ChallengeFutureSkew time.Duration
	Logger              *slog.Logger
	Now                 func() time.Time
}

// AuthService handles authentication business logic
type AuthService struct {
	tokenizer   ports.Tokenizer
	verifier    ports.SignatureVerifier
	identities  ports.IdentityStore
	revocations ports.RevocationStore
	eventPub    ports.EventPublisher
	logger      *slog.Logger

	challengeWindow time.Duration
	futureSkew      time.Duration
	now             func() time.Time
}

// NewAuthService creates a new authentication service. revocations and
// eventPub may be nil.
func NewAuthService(
	tokenizer ports.Tokenizer,
	verifier ports.SignatureVerifier,
	identities ports.IdentityStore,
	revocations ports.RevocationStore,
	eventPub ports.EventPublisher,
	opts AuthOptions,
) *AuthService {
	s := &AuthService{
		tokenizer:       tokenizer,
		verifier:        verifier,
		identities:      identities,
		revocations:     revocations,
		eventPub:        eventPub,
		logger:          opts.Logger,
		challengeWindow: opts.ChallengeWindow,
		futureSkew:      opts.ChallengeFutureSkew,
		now:             opts.Now,
	}
	if s.challengeWindow <= 0 {
		s.challengeWindow = DefaultChallengeWindow
	}
	if s.futureSkew <= 0 {
		s.futureSkew = DefaultChallengeFutureSkew
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "auth")
	return s
}

// Register verifies a signed registration challenge, stores the new identity
// and issues its first session
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*core.Identity, *core.IssuedSession, error) {
	address, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, nil, err
	}
	role, err := core.ParseRole(req.Role)
	if err != nil {
		return nil, nil, err
	}
	challenge, err := core.ParseChallenge(req.Message)
	if err != nil {
		return nil, nil, err
	}
	if err := matchChallenge(challenge, core.ActionRegister, address); err != nil {
		return nil, nil, err
	}
	if challenge.Role != role {
		return nil, nil, fmt.Errorf("challenge role %q does not match %q: %w", challenge.Role, role, core.ErrInvalidChallenge)
	}
	now := s.now()
	if err := s.verifyChallenge(req.Message, req.Signature, address, challenge, now); err != nil {
		return nil, nil, err
	}

	_, err = s.identities.GetIdentityByAddress(ctx, address)
	switch {
	case err == nil:
		return nil, nil, fmt.Errorf("%s: %w", address, core.ErrAlreadyRegistered)
	case !errors.Is(err, core.ErrNotRegistered):
		return nil, nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	identity := &core.Identity{
		ID:        uuid.New().String(),
		Address:   address,
		Role:      role,
		Profile:   req.Profile,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// The unique address index settles concurrent registrations
	if err := s.identities.CreateIdentity(ctx, identity); err != nil {
		return nil, nil, err
	}

	issued, err := s.issueSession(identity, now)
	if err != nil {
		return nil, nil, err
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishIdentityRegistered(ctx, identity); err != nil {
			s.logger.Warn("failed to publish identity registered event", "identity_id", identity.ID, "error", err)
		}
	}
	s.logger.Info("identity registered", "identity_id", identity.ID, "address", address, "role", role)

	return identity, issued, nil
}

// Login verifies a signed login challenge for a registered identity and
// issues a fresh session
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*core.Identity, *core.IssuedSession, error) {
	address, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, nil, err
	}
	challenge, err := core.ParseChallenge(req.Message)
	if err != nil {
		return nil, nil, err
	}
	if err := matchChallenge(challenge, core.ActionLogin, address); err != nil {
		return nil, nil, err
	}
	now := s.now()
	if err := s.verifyChallenge(req.Message, req.Signature, address, challenge, now); err != nil {
		return nil, nil, err
	}

	identity, err := s.identities.GetIdentityByAddress(ctx, address)
	if err != nil {
		return nil, nil, err
	}
	if err := s.identities.TouchLogin(ctx, identity.ID, now); err != nil {
		return nil, nil, fmt.Errorf("failed to record login: %w", err)
	}
	identity.LastLoginAt = &now

	issued, err := s.issueSession(identity, now)
	if err != nil {
		return nil, nil, err
	}
	return identity, issued, nil
}

// VerifyIdentity reports whether address is registered
func (s *AuthService) VerifyIdentity(ctx context.Context, address string) (bool, *core.Identity, error) {
	normalized, err := normalizeAddress(address)
	if err != nil {
		return false, nil, err
	}
	identity, err := s.identities.GetIdentityByAddress(ctx, normalized)
	if errors.Is(err, core.ErrNotRegistered) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, identity, nil
}

// ListIdentities returns registered identities, optionally filtered by role
func (s *AuthService) ListIdentities(ctx context.Context, role *core.Role) ([]core.Identity, error) {
	if role != nil && !role.Valid() {
		return nil, fmt.Errorf("%q: %w", *role, core.ErrInvalidRole)
	}
	return s.identities.ListIdentities(ctx, role)
}

// ValidateSession decodes a session token and checks expiry and revocation
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}

	if s.now().After(session.ExpiresAt) {
		return nil, core.ErrSessionExpired
	}

	if s.revocations != nil {
		revoked, err := s.revocations.IsSessionRevoked(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check session revocation: %w", err)
		}
		if revoked {
			return nil, core.ErrSessionRevoked
		}
	}

	return session, nil
}

// Logout revokes the session until it would have expired. Without a
// revocation store sessions stay valid until expiry and Logout only
// validates the token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.ValidateSession(ctx, token)
	if err != nil {
		return err
	}
	if s.revocations == nil {
		return nil
	}

	remaining := session.ExpiresAt.Sub(s.now())
	if err := s.revocations.RevokeSession(ctx, session.ID, remaining); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.logger.Info("session revoked", "session_id", session.ID, "address", session.Address)
	return nil
}

func (s *AuthService) verifyChallenge(message, signature, address string, challenge *core.Challenge, now time.Time) error {
	sig, err := core.DecodeSignature(signature)
	if err != nil {
		return err
	}
	if !s.verifier.Verify(message, sig, address) {
		return core.ErrInvalidSignature
	}
	return challenge.CheckFreshness(now, s.challengeWindow, s.futureSkew)
}

func (s *AuthService) issueSession(identity *core.Identity, now time.Time) (*core.IssuedSession, error) {
	session := &core.Session{
		ID:         uuid.New().String(),
		IdentityID: identity.ID,
		Address:    identity.Address,
		Role:       identity.Role,
		IssuedAt:   now,
		ExpiresAt:  now.Add(core.SessionTTL),
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return &core.IssuedSession{Token: token, ExpiresAt: session.ExpiresAt}, nil
}

func matchChallenge(c *core.Challenge, action core.Action, address string) error {
	if c.Action != action {
		return fmt.Errorf("challenge action %q, want %q: %w", c.Action, action, core.ErrInvalidChallenge)
	}
	if !strings.EqualFold(c.Address, address) {
		return fmt.Errorf("challenge address %s does not match %s: %w", c.Address, address, core.ErrInvalidChallenge)
	}
	return nil
}

func normalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%q: %w", address, core.ErrInvalidAddress)
	}
	return common.HexToAddress(address).Hex(), nil
}
