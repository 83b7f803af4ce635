package core

import (
	"fmt"
	"strings"
	"time"
)

// SessionTTL is the fixed lifetime of an issued session
const SessionTTL = 24 * time.Hour

// Role is the immutable role an identity declares at registration
type Role string

const (
	RoleOrganizer   Role = "organizer"
	RoleParticipant Role = "participant"
	RoleJudge       Role = "judge"
)

// Roles lists every valid role
var Roles = []Role{RoleOrganizer, RoleParticipant, RoleJudge}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleOrganizer, RoleParticipant, RoleJudge:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole parses a role name case-insensitively
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%q: %w", s, ErrInvalidRole)
	}
	return r, nil
}

// Profile holds optional, user-editable identity fields
type Profile struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Bio         string `json:"bio,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Website     string `json:"website,omitempty"`
}

// Identity is a registered wallet address
type Identity struct {
	ID          string     `json:"id"`
	Address     string     `json:"address"`
	Role        Role       `json:"role"`
	Profile     Profile    `json:"profile"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Challenge is the content of a client-signed authentication message
type Challenge struct {
	Version   int       // Message format version
	Action    Action    // What the signer asks for
	Address   string    // Ethereum address of the signer
	Role      Role      // Requested role, register only
	Timestamp time.Time // Client-side creation time
}

// Session is an authenticated, stateless credential
type Session struct {
	ID         string    // Unique session identifier (jti)
	IdentityID string    // Identity the session is bound to
	Address    string    // Ethereum address of the identity
	Role       Role      // Role of the identity
	IssuedAt   time.Time // When the session was created
	ExpiresAt  time.Time // IssuedAt + SessionTTL
}

// IssuedSession pairs a session with its encoded token
type IssuedSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
