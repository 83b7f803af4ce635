package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/hackledger/adapters/store"
	"github.com/layer-3/hackledger/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIssuesSession(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	auth := newAuth(t, newTestStores(t), nil, pub, nil)
	w := newWallet(t)

	identity, issued, err := auth.Register(ctx, w.registerRequest(t, core.RoleJudge, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, w.address, identity.Address)
	assert.Equal(t, core.RoleJudge, identity.Role)
	assert.Equal(t, "tester", identity.Profile.DisplayName)

	session, err := auth.ValidateSession(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, session.IdentityID)
	assert.Equal(t, core.RoleJudge, session.Role)
	assert.Equal(t, core.SessionTTL, session.ExpiresAt.Sub(session.IssuedAt))

	require.Len(t, pub.registered, 1)
	assert.Equal(t, identity.ID, pub.registered[0].ID)

	registered, found, err := auth.VerifyIdentity(ctx, strings.ToLower(w.address))
	require.NoError(t, err)
	assert.True(t, registered)
	assert.Equal(t, identity.ID, found.ID)
}

func TestRegisterTwiceFails(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t, newTestStores(t), nil, nil, nil)
	w := newWallet(t)

	_, _, err := auth.Register(ctx, w.registerRequest(t, core.RoleJudge, time.Now()))
	require.NoError(t, err)

	_, _, err = auth.Register(ctx, w.registerRequest(t, core.RoleOrganizer, time.Now()))
	require.ErrorIs(t, err, core.ErrAlreadyRegistered)
}

func TestConcurrentRegisterSingleWinner(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t, newTestStores(t), nil, nil, nil)
	w := newWallet(t)
	req := w.registerRequest(t, core.RoleParticipant, time.Now())

	const attempts = 6
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = auth.Register(ctx, req)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, core.ErrAlreadyRegistered)
	}
	assert.Equal(t, 1, wins)
}

func TestChallengeExpiredDespiteValidSignature(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t, newTestStores(t), nil, nil, nil)
	w := newWallet(t)

	_, _, err := auth.Register(ctx, w.registerRequest(t, core.RoleJudge, time.Now().Add(-6*time.Minute)))
	require.ErrorIs(t, err, core.ErrChallengeExpired)

	_, _, err = auth.Register(ctx, w.registerRequest(t, core.RoleJudge, time.Now()))
	require.NoError(t, err)

	_, _, err = auth.Login(ctx, w.loginRequest(t, time.Now().Add(-6*time.Minute)))
	require.ErrorIs(t, err, core.ErrChallengeExpired)

	_, _, err = auth.Login(ctx, w.loginRequest(t, time.Now().Add(3*time.Minute)))
	require.ErrorIs(t, err, core.ErrChallengeExpired)

	_, _, err = auth.Login(ctx, w.loginRequest(t, time.Now().AddDate(1000, 0, 0)))
	require.ErrorIs(t, err, core.ErrChallengeExpired)

	other := newWallet(t)
	_, _, err = auth.Register(ctx, other.registerRequest(t, core.RoleJudge, time.Now().AddDate(1000, 0, 0)))
	require.ErrorIs(t, err, core.ErrChallengeExpired)
	registered, _, err := auth.VerifyIdentity(ctx, other.address)
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestRegisterRejections(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t, newTestStores(t), nil, nil, nil)
	w := newWallet(t)
	other := newWallet(t)
	now := time.Now()

	t.Run("invalid role", func(t *testing.T) {
		req := w.registerRequest(t, core.RoleJudge, now)
		req.Role = "admin"
		_, _, err := auth.Register(ctx, req)
		require.ErrorIs(t, err, core.ErrInvalidRole)
	})

	t.Run("role differs from signed message", func(t *testing.T) {
		req := w.registerRequest(t, core.RoleJudge, now)
		req.Role = core.RoleOrganizer.String()
		_, _, err := auth.Register(ctx, req)
		require.ErrorIs(t, err, core.ErrInvalidChallenge)
	})

	t.Run("signed by someone else", func(t *testing.T) {
		req := w.registerRequest(t, core.RoleJudge, now)
		req.Signature = other.sign(t, req.Message)
		_, _, err := auth.Register(ctx, req)
		require.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("message for another address", func(t *testing.T) {
		req := other.registerRequest(t, core.RoleJudge, now)
		req.Address = w.address
		_, _, err := auth.Register(ctx, req)
		require.ErrorIs(t, err, core.ErrInvalidChallenge)
	})

	t.Run("missing timestamp", func(t *testing.T) {
		msg := "HackLedger Authentication\nVersion: 1\nAction: register\nAddress: " + w.address + "\nRole: judge"
		req := RegisterRequest{Address: w.address, Role: "judge", Message: msg, Signature: w.sign(t, msg)}
		_, _, err := auth.Register(ctx, req)
		require.ErrorIs(t, err, core.ErrInvalidChallenge)
	})

	t.Run("login message reused for register", func(t *testing.T) {
		login := w.loginRequest(t, now)
		req := RegisterRequest{Address: w.address, Role: "judge", Message: login.Message, Signature: login.Signature}
		_, _, err := auth.Register(ctx, req)
		require.ErrorIs(t, err, core.ErrInvalidChallenge)
	})

	t.Run("bad address", func(t *testing.T) {
		req := w.registerRequest(t, core.RoleJudge, now)
		req.Address = "0x123"
		_, _, err := auth.Register(ctx, req)
		require.ErrorIs(t, err, core.ErrInvalidAddress)
	})

	t.Run("garbage signature", func(t *testing.T) {
		req := w.registerRequest(t, core.RoleJudge, now)
		req.Signature = "0xzz"
		_, _, err := auth.Register(ctx, req)
		require.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("truncated signature", func(t *testing.T) {
		req := w.registerRequest(t, core.RoleJudge, now)
		req.Signature = req.Signature[:len(req.Signature)-2]
		_, _, err := auth.Register(ctx, req)
		require.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	registered, _, err := auth.VerifyIdentity(ctx, w.address)
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	auth := newAuth(t, stores, nil, nil, nil)
	w := newWallet(t)

	_, _, err := auth.Login(ctx, w.loginRequest(t, time.Now()))
	require.ErrorIs(t, err, core.ErrNotRegistered)

	registered, _, err := auth.Register(ctx, w.registerRequest(t, core.RoleOrganizer, time.Now()))
	require.NoError(t, err)
	assert.Nil(t, registered.LastLoginAt)

	identity, issued, err := auth.Login(ctx, w.loginRequest(t, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, registered.ID, identity.ID)
	require.NotNil(t, identity.LastLoginAt)
	assert.NotEmpty(t, issued.Token)

	stored, err := stores.identities.GetIdentityByAddress(ctx, w.address)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)

	// A second login with the same signed message succeeds within the window
	req := w.loginRequest(t, time.Now())
	_, first, err := auth.Login(ctx, req)
	require.NoError(t, err)
	_, second, err := auth.Login(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }
	auth := newAuth(t, newTestStores(t), nil, nil, clock)
	w := newWallet(t)

	_, issued, err := auth.Register(ctx, w.registerRequest(t, core.RoleJudge, now))
	require.NoError(t, err)
	assert.True(t, issued.ExpiresAt.Equal(now.Add(24*time.Hour)))

	now = now.Add(24*time.Hour + time.Second)
	_, err = auth.ValidateSession(ctx, issued.Token)
	require.ErrorIs(t, err, core.ErrSessionExpired)
}

func TestLogoutRevokesWhenConfigured(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	auth := newAuth(t, newTestStores(t), store.NewMemoryRevocationStore(), nil, nil)
	_, issued, err := auth.Register(ctx, w.registerRequest(t, core.RoleJudge, time.Now()))
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, issued.Token))
	_, err = auth.ValidateSession(ctx, issued.Token)
	require.ErrorIs(t, err, core.ErrSessionRevoked)

	stateless := newAuth(t, newTestStores(t), nil, nil, nil)
	_, issued, err = stateless.Register(ctx, w.registerRequest(t, core.RoleJudge, time.Now()))
	require.NoError(t, err)
	require.NoError(t, stateless.Logout(ctx, issued.Token))
	_, err = stateless.ValidateSession(ctx, issued.Token)
	require.NoError(t, err)
}

func TestListIdentities(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t, newTestStores(t), nil, nil, nil)

	for _, role := range []core.Role{core.RoleJudge, core.RoleJudge, core.RoleParticipant} {
		_, _, err := auth.Register(ctx, newWallet(t).registerRequest(t, role, time.Now()))
		require.NoError(t, err)
	}

	all, err := auth.ListIdentities(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	judge := core.RoleJudge
	judges, err := auth.ListIdentities(ctx, &judge)
	require.NoError(t, err)
	assert.Len(t, judges, 2)

	bogus := core.Role("admin")
	_, err = auth.ListIdentities(ctx, &bogus)
	require.ErrorIs(t, err, core.ErrInvalidRole)
}
