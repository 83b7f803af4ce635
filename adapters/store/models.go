package store

import "time"

// IdentityRecord is the persisted form of core.Identity
type IdentityRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	Address     string `gorm:"size:42;uniqueIndex;not null"`
	Role        string `gorm:"size:16;index;not null"`
	DisplayName string
	Email       string
	Bio         string
	AvatarURL   string
	Website     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

func (IdentityRecord) TableName() string { return "identities" }

// HackathonRecord mirrors a ledger hackathon
type HackathonRecord struct {
	ID                   uint   `gorm:"primaryKey"`
	ExternalID           string `gorm:"size:32;uniqueIndex;not null"`
	Name                 string
	Description          string
	OrganizerAddress     string `gorm:"size:42;index"`
	PrizePoolBaseUnits   string `gorm:"size:80;not null"`
	PrizePoolDisplay     string `gorm:"size:100"`
	ProjectCount         uint64
	JudgeCount           uint64
	Active               bool
	RegistrationDeadline time.Time
	StartDate            time.Time
	EndDate              time.Time
	LastSyncedAt         time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (HackathonRecord) TableName() string { return "cached_hackathons" }

// PrizeRecord mirrors one prize of a hackathon
type PrizeRecord struct {
	ID              uint   `gorm:"primaryKey"`
	ExternalID      string `gorm:"size:64;uniqueIndex;not null"`
	HackathonID     uint64 `gorm:"index;not null"`
	Title           string
	AmountBaseUnits string `gorm:"size:80;not null"`
	AmountDisplay   string `gorm:"size:100"`
	Position        uint64
	LastSyncedAt    time.Time
	CreatedAt       time.Time
}

func (PrizeRecord) TableName() string { return "cached_prizes" }

// JudgeRecord mirrors a judge assignment
type JudgeRecord struct {
	ID           uint   `gorm:"primaryKey"`
	ExternalID   string `gorm:"size:80;uniqueIndex;not null"`
	HackathonID  uint64 `gorm:"index;not null"`
	Address      string `gorm:"size:42;not null"`
	LastSyncedAt time.Time
	CreatedAt    time.Time
}

func (JudgeRecord) TableName() string { return "cached_judges" }

// ProjectRecord mirrors a project submission
type ProjectRecord struct {
	ID                  uint   `gorm:"primaryKey"`
	ExternalID          string `gorm:"size:64;uniqueIndex;not null"`
	HackathonID         uint64 `gorm:"index;not null"`
	ProjectID           uint64 `gorm:"not null"`
	Name                string
	Description         string
	Links               []string `gorm:"serializer:json"`
	ParticipantAddress  string   `gorm:"size:42;index"`
	SubmissionTimestamp time.Time
	LastSyncedAt        time.Time
	CreatedAt           time.Time
}

func (ProjectRecord) TableName() string { return "cached_projects" }
