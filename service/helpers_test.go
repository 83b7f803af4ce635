package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/layer-3/hackledger/adapters/ledger"
	"github.com/layer-3/hackledger/adapters/signature"
	"github.com/layer-3/hackledger/adapters/store"
	"github.com/layer-3/hackledger/adapters/tokenizer"
	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
	"github.com/stretchr/testify/require"
)

type testStores struct {
	identities ports.IdentityStore
	cache      ports.CacheStore
}

func newTestStores(t *testing.T) testStores {
	t.Helper()
	db, err := store.Open(store.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	conv, err := core.NewConverter(big.NewInt(1_000_000_000_000_000_000))
	require.NoError(t, err)
	return testStores{
		identities: store.NewIdentityStore(db),
		cache:      store.NewCacheStore(db, conv),
	}
}

// wallet signs challenges the way a browser wallet does
type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (w wallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := signature.SignMessage(message, func(digest []byte) ([]byte, error) {
		return crypto.Sign(digest, w.key)
	})
	require.NoError(t, err)
	return hexutil.Encode(sig)
}

func (w wallet) registerRequest(t *testing.T, role core.Role, at time.Time) RegisterRequest {
	msg := core.BuildChallenge(core.Challenge{Action: core.ActionRegister, Address: w.address, Role: role, Timestamp: at})
	return RegisterRequest{
		Address:   w.address,
		Role:      role.String(),
		Signature: w.sign(t, msg),
		Message:   msg,
		Profile:   core.Profile{DisplayName: "tester"},
	}
}

func (w wallet) loginRequest(t *testing.T, at time.Time) LoginRequest {
	msg := core.BuildChallenge(core.Challenge{Action: core.ActionLogin, Address: w.address, Timestamp: at})
	return LoginRequest{Address: w.address, Signature: w.sign(t, msg), Message: msg}
}

// recordingPublisher keeps published events in memory
type recordingPublisher struct {
	mu         sync.Mutex
	registered []*core.Identity
	syncs      []*core.SyncReport
	requested  []uint64
}

func (p *recordingPublisher) PublishIdentityRegistered(_ context.Context, identity *core.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, identity)
	return nil
}

func (p *recordingPublisher) PublishSyncCompleted(_ context.Context, report *core.SyncReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncs = append(p.syncs, report)
	return nil
}

func (p *recordingPublisher) PublishSyncRequested(_ context.Context, hackathonID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requested = append(p.requested, hackathonID)
	return nil
}

func newSessionKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func newAuth(t *testing.T, stores testStores, revocations ports.RevocationStore, pub ports.EventPublisher, now func() time.Time) *AuthService {
	t.Helper()
	return NewAuthService(
		tokenizer.NewJWTTokenizer(newSessionKey(t)),
		signature.NewPersonalVerifier(),
		stores.identities,
		revocations,
		pub,
		AuthOptions{Now: now},
	)
}

const (
	organizerAddr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	judgeAddr     = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
)

// seedLedger creates hackathon 1 with two prizes, one judge and two projects,
// and hackathon 2 with nothing but the record itself
func seedLedger(t *testing.T) *ledger.MemoryLedger {
	t.Helper()
	l := ledger.NewMemoryLedger()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	l.PutHackathon(core.Hackathon{
		ExternalID:           1,
		Name:                 "ZK Week",
		OrganizerAddress:     organizerAddr,
		PrizePoolBaseUnits:   new(big.Int).Mul(big.NewInt(5), big.NewInt(1_000_000_000_000_000_000)),
		Active:               true,
		RegistrationDeadline: start.Add(-24 * time.Hour),
		StartDate:            start,
		EndDate:              start.Add(72 * time.Hour),
	}, []core.Prize{
		{Title: "First", AmountBaseUnits: big.NewInt(3), Position: 1},
		{Title: "Second", AmountBaseUnits: big.NewInt(2), Position: 2},
	}, []string{judgeAddr})
	for i := 0; i < 2; i++ {
		_, err := l.AddProject(1, core.Project{Name: "p", ParticipantAddress: organizerAddr, SubmissionTimestamp: start})
		require.NoError(t, err)
	}
	l.PutHackathon(core.Hackathon{
		ExternalID:         2,
		Name:               "Empty",
		OrganizerAddress:   judgeAddr,
		PrizePoolBaseUnits: big.NewInt(0),
	}, nil, nil)
	return l
}
