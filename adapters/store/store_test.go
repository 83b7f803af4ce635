package store

import (
	"context"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/hackledger/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	addrA = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
	addrB = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newConverter(t *testing.T) *core.Converter {
	t.Helper()
	conv, err := core.NewConverter(big.NewInt(1_000_000))
	require.NoError(t, err)
	return conv
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	require.Error(t, err)
}

func TestIdentityStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewIdentityStore(newTestDB(t))

	identity := &core.Identity{
		ID:      uuid.NewString(),
		Address: addrA,
		Role:    core.RoleJudge,
		Profile: core.Profile{DisplayName: "Ada", Email: "ada@example.com"},
	}
	require.NoError(t, s.CreateIdentity(ctx, identity))
	assert.False(t, identity.CreatedAt.IsZero())

	got, err := s.GetIdentityByAddress(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, got.ID)
	assert.Equal(t, core.RoleJudge, got.Role)
	assert.Equal(t, "Ada", got.Profile.DisplayName)
	assert.Nil(t, got.LastLoginAt)

	loginAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.TouchLogin(ctx, identity.ID, loginAt))
	got, err = s.GetIdentityByAddress(ctx, addrA)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, loginAt.Equal(*got.LastLoginAt))

	require.ErrorIs(t, s.TouchLogin(ctx, uuid.NewString(), loginAt), core.ErrNotRegistered)

	_, err = s.GetIdentityByAddress(ctx, addrB)
	require.ErrorIs(t, err, core.ErrNotRegistered)
}

func TestIdentityStoreUniqueAddress(t *testing.T) {
	ctx := context.Background()
	s := NewIdentityStore(newTestDB(t))

	require.NoError(t, s.CreateIdentity(ctx, &core.Identity{ID: uuid.NewString(), Address: addrA, Role: core.RoleJudge}))
	err := s.CreateIdentity(ctx, &core.Identity{ID: uuid.NewString(), Address: addrA, Role: core.RoleOrganizer})
	require.ErrorIs(t, err, core.ErrAlreadyRegistered)
}

func TestIdentityStoreConcurrentRegistration(t *testing.T) {
	ctx := context.Background()
	s := NewIdentityStore(newTestDB(t))

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.CreateIdentity(ctx, &core.Identity{ID: uuid.NewString(), Address: addrA, Role: core.RoleParticipant})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, core.ErrAlreadyRegistered)
	}
	assert.Equal(t, 1, succeeded)
}

func TestIdentityStoreListByRole(t *testing.T) {
	ctx := context.Background()
	s := NewIdentityStore(newTestDB(t))

	require.NoError(t, s.CreateIdentity(ctx, &core.Identity{ID: uuid.NewString(), Address: addrA, Role: core.RoleJudge}))
	require.NoError(t, s.CreateIdentity(ctx, &core.Identity{ID: uuid.NewString(), Address: addrB, Role: core.RoleOrganizer}))

	all, err := s.ListIdentities(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	judge := core.RoleJudge
	judges, err := s.ListIdentities(ctx, &judge)
	require.NoError(t, err)
	require.Len(t, judges, 1)
	assert.Equal(t, addrA, judges[0].Address)

	participant := core.RoleParticipant
	none, err := s.ListIdentities(ctx, &participant)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func sampleHackathon() core.Hackathon {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return core.Hackathon{
		ExternalID:           7,
		Name:                 "ZK Week",
		Description:          "proofs",
		OrganizerAddress:     addrA,
		PrizePoolBaseUnits:   big.NewInt(2_500_000),
		ProjectCount:         1,
		JudgeCount:           1,
		Active:               true,
		RegistrationDeadline: start.Add(-24 * time.Hour),
		StartDate:            start,
		EndDate:              start.Add(72 * time.Hour),
	}
}

func TestCacheStoreHackathonUpsert(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewCacheStore(db, newConverter(t))
	t0 := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

	h := sampleHackathon()
	res, err := s.UpsertHackathon(ctx, h, t0)
	require.NoError(t, err)
	assert.Equal(t, core.WriteCreated, res)

	var rec HackathonRecord
	require.NoError(t, db.Where("external_id = ?", "7").First(&rec).Error)
	assert.Equal(t, "2500000", rec.PrizePoolBaseUnits)
	assert.Equal(t, "2.5", rec.PrizePoolDisplay)

	// Same content is a no-op and keeps the original sync time
	res, err = s.UpsertHackathon(ctx, h, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, core.WriteUnchanged, res)
	cached, err := s.GetHackathon(ctx, 7)
	require.NoError(t, err)
	assert.True(t, t0.Equal(cached.LastSyncedAt))

	// Only mutable columns follow the ledger
	h.Active = false
	h.ProjectCount = 3
	h.Name = "renamed"
	res, err = s.UpsertHackathon(ctx, h, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, core.WriteUpdated, res)

	cached, err = s.GetHackathon(ctx, 7)
	require.NoError(t, err)
	assert.False(t, cached.Active)
	assert.Equal(t, uint64(3), cached.ProjectCount)
	assert.Equal(t, "ZK Week", cached.Name)
	assert.Equal(t, int64(2_500_000), cached.PrizePoolBaseUnits.Int64())
	assert.True(t, t0.Add(2*time.Hour).Equal(cached.LastSyncedAt))

	_, err = s.GetHackathon(ctx, 8)
	require.ErrorIs(t, err, core.ErrCacheMiss)
}

func TestCacheStoreImmutableEntities(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewCacheStore(db, newConverter(t))
	now := time.Now().UTC()

	prize := core.Prize{HackathonID: 7, Title: "First", AmountBaseUnits: big.NewInt(1_000_001), Position: 1}
	res, err := s.UpsertPrize(ctx, prize, now)
	require.NoError(t, err)
	assert.Equal(t, core.WriteCreated, res)

	prize.Title = "changed"
	res, err = s.UpsertPrize(ctx, prize, now)
	require.NoError(t, err)
	assert.Equal(t, core.WriteUnchanged, res)

	var prizeRec PrizeRecord
	require.NoError(t, db.Where("external_id = ?", "7:1").First(&prizeRec).Error)
	assert.Equal(t, "First", prizeRec.Title)
	assert.Equal(t, "1.000001", prizeRec.AmountDisplay)

	project := core.Project{
		HackathonID:         7,
		ProjectID:           1,
		Name:                "prover",
		Links:               []string{"https://example.com/a", "https://example.com/b"},
		ParticipantAddress:  addrB,
		SubmissionTimestamp: now.Truncate(time.Second),
	}
	res, err = s.UpsertProject(ctx, project, now)
	require.NoError(t, err)
	assert.Equal(t, core.WriteCreated, res)
	res, err = s.UpsertProject(ctx, project, now)
	require.NoError(t, err)
	assert.Equal(t, core.WriteUnchanged, res)

	var projectRec ProjectRecord
	require.NoError(t, db.Where("external_id = ?", "7:1").First(&projectRec).Error)
	assert.Equal(t, project.Links, projectRec.Links)
}

func TestCacheStoreJudges(t *testing.T) {
	ctx := context.Background()
	s := NewCacheStore(newTestDB(t), newConverter(t))
	now := time.Now().UTC()

	res, err := s.UpsertJudge(ctx, core.JudgeAssignment{HackathonID: 7, Address: addrA}, now)
	require.NoError(t, err)
	assert.Equal(t, core.WriteCreated, res)

	// The key is case-insensitive on the address
	res, err = s.UpsertJudge(ctx, core.JudgeAssignment{HackathonID: 7, Address: "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"}, now)
	require.NoError(t, err)
	assert.Equal(t, core.WriteUnchanged, res)

	_, err = s.UpsertJudge(ctx, core.JudgeAssignment{HackathonID: 7, Address: addrB}, now)
	require.NoError(t, err)

	j, err := s.GetJudge(ctx, 7, addrA)
	require.NoError(t, err)
	assert.Equal(t, addrA, j.Address)

	_, err = s.GetJudge(ctx, 8, addrA)
	require.ErrorIs(t, err, core.ErrCacheMiss)

	judges, err := s.ListJudges(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, judges, 2)
}

func TestMemoryRevocationStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := &MemoryRevocationStore{revoked: map[string]time.Time{}, now: func() time.Time { return now }}

	revoked, err := s.IsSessionRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.RevokeSession(ctx, "a", time.Hour))
	revoked, err = s.IsSessionRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, err = s.IsSessionRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	// Expired entries are purged on the next write
	require.NoError(t, s.RevokeSession(ctx, "b", time.Hour))
	assert.NotContains(t, s.revoked, "a")
}

func TestRedisRevocationStore(t *testing.T) {
	url := os.Getenv("HACKLEDGER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("HACKLEDGER_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	s := NewRedisRevocationStore(client)
	id := uuid.NewString()

	revoked, err := s.IsSessionRevoked(ctx, id)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.RevokeSession(ctx, id, time.Minute))
	revoked, err = s.IsSessionRevoked(ctx, id)
	require.NoError(t, err)
	assert.True(t, revoked)
}
