package core

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// EntityType names a kind of ledger-backed record
type EntityType string

const (
	EntityHackathon EntityType = "hackathon"
	EntityPrize     EntityType = "prize"
	EntityJudge     EntityType = "judge"
	EntityProject   EntityType = "project"
)

// Hackathon as recorded on the ledger. Only Active, ProjectCount and
// JudgeCount change after creation.
type Hackathon struct {
	ExternalID           uint64
	Name                 string
	Description          string
	OrganizerAddress     string
	PrizePoolBaseUnits   *big.Int
	ProjectCount         uint64
	JudgeCount           uint64
	Active               bool
	RegistrationDeadline time.Time
	StartDate            time.Time
	EndDate              time.Time
}

// Prize is one ranked award of a hackathon
type Prize struct {
	HackathonID     uint64
	Title           string
	AmountBaseUnits *big.Int
	Position        uint64
}

// JudgeAssignment binds a judge address to a hackathon
type JudgeAssignment struct {
	HackathonID uint64
	Address     string
}

// Project is a participant submission
type Project struct {
	HackathonID         uint64
	ProjectID           uint64
	Name                string
	Description         string
	Links               []string
	ParticipantAddress  string
	SubmissionTimestamp time.Time
}

// HackathonExternalID returns the cache key of a hackathon
func HackathonExternalID(id uint64) string {
	return fmt.Sprintf("%d", id)
}

// PrizeExternalID returns the cache key of a prize
func PrizeExternalID(hackathonID, position uint64) string {
	return fmt.Sprintf("%d:%d", hackathonID, position)
}

// JudgeExternalID returns the cache key of a judge assignment
func JudgeExternalID(hackathonID uint64, address string) string {
	return fmt.Sprintf("%d:%s", hackathonID, strings.ToLower(address))
}

// ProjectExternalID returns the cache key of a project
func ProjectExternalID(hackathonID, projectID uint64) string {
	return fmt.Sprintf("%d:%d", hackathonID, projectID)
}

// WriteResult reports what an upsert did to the cache
type WriteResult int

const (
	WriteUnchanged WriteResult = iota
	WriteCreated
	WriteUpdated
)

func (w WriteResult) String() string {
	switch w {
	case WriteCreated:
		return "created"
	case WriteUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// CachedHackathon is a hackathon mirror plus its sync bookkeeping
type CachedHackathon struct {
	Hackathon
	LastSyncedAt time.Time
}

// CachedJudge is a judge assignment mirror plus its sync bookkeeping
type CachedJudge struct {
	JudgeAssignment
	LastSyncedAt time.Time
}
