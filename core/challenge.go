package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ChallengeVersion is the current challenge message format. Any change to the
// wording below must bump it.
const ChallengeVersion = 1

const challengeHeader = "HackLedger Authentication"

// maxTimestampMillis is 10000-01-01T00:00:00Z
const maxTimestampMillis = 253402300800000

// Action is the purpose tag of a challenge
type Action string

const (
	ActionLogin    Action = "login"
	ActionRegister Action = "register"
)

// BuildChallenge renders the canonical message a client signs
func BuildChallenge(c Challenge) string {
	var b strings.Builder
	b.WriteString(challengeHeader)
	b.WriteString("\nVersion: ")
	b.WriteString(strconv.Itoa(ChallengeVersion))
	b.WriteString("\nAction: ")
	b.WriteString(string(c.Action))
	b.WriteString("\nAddress: ")
	b.WriteString(c.Address)
	if c.Action == ActionRegister {
		b.WriteString("\nRole: ")
		b.WriteString(string(c.Role))
	}
	b.WriteString("\nTimestamp: ")
	b.WriteString(strconv.FormatInt(c.Timestamp.UnixMilli(), 10))
	return b.String()
}

// ParseChallenge decodes a signed message. A message without a timestamp, with
// an unknown version or with duplicate fields is unverifiable.
func ParseChallenge(message string) (*Challenge, error) {
	lines := strings.Split(strings.ReplaceAll(message, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != challengeHeader {
		return nil, fmt.Errorf("missing header: %w", ErrInvalidChallenge)
	}

	fields := make(map[string]string, len(lines)-1)
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed line %q: %w", line, ErrInvalidChallenge)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("duplicate field %q: %w", key, ErrInvalidChallenge)
		}
		fields[key] = strings.TrimSpace(value)
	}

	version, err := strconv.Atoi(fields["version"])
	if err != nil || version != ChallengeVersion {
		return nil, fmt.Errorf("unsupported version %q: %w", fields["version"], ErrInvalidChallenge)
	}

	rawTS, ok := fields["timestamp"]
	if !ok || rawTS == "" {
		return nil, fmt.Errorf("missing timestamp: %w", ErrInvalidChallenge)
	}
	ms, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil || ms <= 0 || ms > maxTimestampMillis {
		return nil, fmt.Errorf("bad timestamp %q: %w", rawTS, ErrInvalidChallenge)
	}

	c := &Challenge{
		Version:   version,
		Action:    Action(fields["action"]),
		Address:   fields["address"],
		Timestamp: time.UnixMilli(ms),
	}
	switch c.Action {
	case ActionLogin:
		if _, has := fields["role"]; has {
			return nil, fmt.Errorf("role not allowed in login challenge: %w", ErrInvalidChallenge)
		}
	case ActionRegister:
		c.Role = Role(fields["role"])
	default:
		return nil, fmt.Errorf("unknown action %q: %w", fields["action"], ErrInvalidChallenge)
	}
	if c.Address == "" {
		return nil, fmt.Errorf("missing address: %w", ErrInvalidChallenge)
	}
	return c, nil
}

// CheckFreshness enforces the replay window: the timestamp may be at most
// window in the past and skew in the future relative to now.
func (c *Challenge) CheckFreshness(now time.Time, window, skew time.Duration) error {
	// Compare instants, Durations saturate for timestamps centuries away
	if c.Timestamp.Before(now.Add(-window)) {
		return fmt.Errorf("issued at %s, before the %s window: %w", c.Timestamp.UTC().Format(time.RFC3339), window, ErrChallengeExpired)
	}
	if c.Timestamp.After(now.Add(skew)) {
		return fmt.Errorf("issued at %s, in the future: %w", c.Timestamp.UTC().Format(time.RFC3339), ErrChallengeExpired)
	}
	return nil
}

// SignatureLength is r || s || v
const SignatureLength = 65

// DecodeSignature decodes a 0x-prefixed hex signature of SignatureLength bytes
func DecodeSignature(s string) ([]byte, error) {
	decoded, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", ErrInvalidSignature)
	}
	if len(decoded) != SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes: %w", SignatureLength, ErrInvalidSignature)
	}
	return decoded, nil
}
