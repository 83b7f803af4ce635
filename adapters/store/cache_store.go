package store

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CacheStore is a gorm implementation of ports.CacheStore. Every upsert reads
// first so that mirroring an unchanged entity issues no write statement.
type CacheStore struct {
	db        *gorm.DB
	converter *core.Converter
}

// NewCacheStore creates a cache store that records display amounts with converter
func NewCacheStore(db *gorm.DB, converter *core.Converter) ports.CacheStore {
	return &CacheStore{db: db, converter: converter}
}

// UpsertHackathon creates the hackathon or refreshes its mutable columns
func (s *CacheStore) UpsertHackathon(ctx context.Context, h core.Hackathon, syncedAt time.Time) (core.WriteResult, error) {
	externalID := core.HackathonExternalID(h.ExternalID)
	db := s.db.WithContext(ctx)

	var existing HackathonRecord
	found, err := findByExternalID(db, externalID, &existing)
	if err != nil {
		return core.WriteUnchanged, fmt.Errorf("failed to load hackathon %s: %w", externalID, err)
	}

	if !found {
		rec := HackathonRecord{
			ExternalID:           externalID,
			Name:                 h.Name,
			Description:          h.Description,
			OrganizerAddress:     h.OrganizerAddress,
			PrizePoolBaseUnits:   amountString(h.PrizePoolBaseUnits),
			PrizePoolDisplay:     s.converter.FormatDisplay(h.PrizePoolBaseUnits),
			ProjectCount:         h.ProjectCount,
			JudgeCount:           h.JudgeCount,
			Active:               h.Active,
			RegistrationDeadline: h.RegistrationDeadline,
			StartDate:            h.StartDate,
			EndDate:              h.EndDate,
			LastSyncedAt:         syncedAt,
		}
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).Create(&rec)
		if res.Error != nil {
			return core.WriteUnchanged, fmt.Errorf("failed to create hackathon %s: %w", externalID, res.Error)
		}
		if res.RowsAffected > 0 {
			return core.WriteCreated, nil
		}
		// A concurrent writer inserted it first, reconcile against that row
		found, err = findByExternalID(db, externalID, &existing)
		if err != nil {
			return core.WriteUnchanged, fmt.Errorf("failed to reload hackathon %s: %w", externalID, err)
		}
		if !found {
			return core.WriteUnchanged, fmt.Errorf("hackathon %s vanished after insert conflict", externalID)
		}
	}

	if existing.Active == h.Active && existing.ProjectCount == h.ProjectCount && existing.JudgeCount == h.JudgeCount {
		return core.WriteUnchanged, nil
	}

	err = db.Model(&existing).Updates(map[string]any{
		"active":         h.Active,
		"project_count":  h.ProjectCount,
		"judge_count":    h.JudgeCount,
		"last_synced_at": syncedAt,
	}).Error
	if err != nil {
		return core.WriteUnchanged, fmt.Errorf("failed to update hackathon %s: %w", externalID, err)
	}
	return core.WriteUpdated, nil
}

// UpsertPrize creates the prize if absent. Prizes are immutable.
func (s *CacheStore) UpsertPrize(ctx context.Context, p core.Prize, syncedAt time.Time) (core.WriteResult, error) {
	externalID := core.PrizeExternalID(p.HackathonID, p.Position)
	return createIfAbsent(s.db.WithContext(ctx), externalID, &PrizeRecord{
		ExternalID:      externalID,
		HackathonID:     p.HackathonID,
		Title:           p.Title,
		AmountBaseUnits: amountString(p.AmountBaseUnits),
		AmountDisplay:   s.converter.FormatDisplay(p.AmountBaseUnits),
		Position:        p.Position,
		LastSyncedAt:    syncedAt,
	})
}

// UpsertJudge creates the judge assignment if absent
func (s *CacheStore) UpsertJudge(ctx context.Context, j core.JudgeAssignment, syncedAt time.Time) (core.WriteResult, error) {
	externalID := core.JudgeExternalID(j.HackathonID, j.Address)
	return createIfAbsent(s.db.WithContext(ctx), externalID, &JudgeRecord{
		ExternalID:   externalID,
		HackathonID:  j.HackathonID,
		Address:      j.Address,
		LastSyncedAt: syncedAt,
	})
}

// UpsertProject creates the project if absent. Submissions are immutable.
func (s *CacheStore) UpsertProject(ctx context.Context, p core.Project, syncedAt time.Time) (core.WriteResult, error) {
	externalID := core.ProjectExternalID(p.HackathonID, p.ProjectID)
	return createIfAbsent(s.db.WithContext(ctx), externalID, &ProjectRecord{
		ExternalID:          externalID,
		HackathonID:         p.HackathonID,
		ProjectID:           p.ProjectID,
		Name:                p.Name,
		Description:         p.Description,
		Links:               p.Links,
		ParticipantAddress:  p.ParticipantAddress,
		SubmissionTimestamp: p.SubmissionTimestamp,
		LastSyncedAt:        syncedAt,
	})
}

// GetHackathon returns the cached hackathon or core.ErrCacheMiss
func (s *CacheStore) GetHackathon(ctx context.Context, id uint64) (*core.CachedHackathon, error) {
	externalID := core.HackathonExternalID(id)
	var rec HackathonRecord
	found, err := findByExternalID(s.db.WithContext(ctx), externalID, &rec)
	if err != nil {
		return nil, fmt.Errorf("failed to load hackathon %s: %w", externalID, err)
	}
	if !found {
		return nil, fmt.Errorf("hackathon %s: %w", externalID, core.ErrCacheMiss)
	}

	pool, ok := new(big.Int).SetString(rec.PrizePoolBaseUnits, 10)
	if !ok {
		return nil, fmt.Errorf("hackathon %s has corrupt prize pool %q", externalID, rec.PrizePoolBaseUnits)
	}
	return &core.CachedHackathon{
		Hackathon: core.Hackathon{
			ExternalID:           id,
			Name:                 rec.Name,
			Description:          rec.Description,
			OrganizerAddress:     rec.OrganizerAddress,
			PrizePoolBaseUnits:   pool,
			ProjectCount:         rec.ProjectCount,
			JudgeCount:           rec.JudgeCount,
			Active:               rec.Active,
			RegistrationDeadline: rec.RegistrationDeadline,
			StartDate:            rec.StartDate,
			EndDate:              rec.EndDate,
		},
		LastSyncedAt: rec.LastSyncedAt,
	}, nil
}

// GetJudge returns the cached judge assignment or core.ErrCacheMiss
func (s *CacheStore) GetJudge(ctx context.Context, hackathonID uint64, address string) (*core.CachedJudge, error) {
	externalID := core.JudgeExternalID(hackathonID, address)
	var rec JudgeRecord
	found, err := findByExternalID(s.db.WithContext(ctx), externalID, &rec)
	if err != nil {
		return nil, fmt.Errorf("failed to load judge %s: %w", externalID, err)
	}
	if !found {
		return nil, fmt.Errorf("judge %s: %w", externalID, core.ErrCacheMiss)
	}
	j := rec.toCore()
	return &j, nil
}

// ListJudges returns every cached judge of a hackathon
func (s *CacheStore) ListJudges(ctx context.Context, hackathonID uint64) ([]core.CachedJudge, error) {
	var recs []JudgeRecord
	err := s.db.WithContext(ctx).
		Where("hackathon_id = ?", hackathonID).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list judges: %w", err)
	}
	out := make([]core.CachedJudge, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toCore())
	}
	return out, nil
}

func (r JudgeRecord) toCore() core.CachedJudge {
	return core.CachedJudge{
		JudgeAssignment: core.JudgeAssignment{
			HackathonID: r.HackathonID,
			Address:     r.Address,
		},
		LastSyncedAt: r.LastSyncedAt,
	}
}

// createIfAbsent inserts rec unless a record with externalID already exists
func createIfAbsent(db *gorm.DB, externalID string, rec any) (core.WriteResult, error) {
	var count int64
	if err := db.Model(rec).Where("external_id = ?", externalID).Count(&count).Error; err != nil {
		return core.WriteUnchanged, fmt.Errorf("failed to load %s: %w", externalID, err)
	}
	if count > 0 {
		return core.WriteUnchanged, nil
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoNothing: true,
	}).Create(rec)
	if res.Error != nil {
		return core.WriteUnchanged, fmt.Errorf("failed to create %s: %w", externalID, res.Error)
	}
	// A concurrent writer won the insert
	if res.RowsAffected == 0 {
		return core.WriteUnchanged, nil
	}
	return core.WriteCreated, nil
}

func findByExternalID(db *gorm.DB, externalID string, dest any) (bool, error) {
	res := db.Where("external_id = ?", externalID).Limit(1).Find(dest)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
