package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/layer-3/hackledger/core"
)

// MemoryLedger is an in-process ledger for tests and local development.
// Failures can be injected per entity with Fail.
type MemoryLedger struct {
	mu         sync.RWMutex
	hackathons map[uint64]*memoryHackathon
	failures   map[string]error
	calls      atomic.Int64
}

type memoryHackathon struct {
	hackathon core.Hackathon
	prizes    []core.Prize
	judges    []string
	projects  map[uint64]core.Project
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		hackathons: make(map[uint64]*memoryHackathon),
		failures:   make(map[string]error),
	}
}

// PutHackathon creates or replaces a hackathon with its prizes and judges.
// JudgeCount follows the judge list.
func (l *MemoryLedger) PutHackathon(h core.Hackathon, prizes []core.Prize, judges []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h.JudgeCount = uint64(len(judges))
	entry, ok := l.hackathons[h.ExternalID]
	if !ok {
		entry = &memoryHackathon{projects: make(map[uint64]core.Project)}
		l.hackathons[h.ExternalID] = entry
	}
	h.ProjectCount = uint64(len(entry.projects))
	entry.hackathon = h
	entry.prizes = append([]core.Prize(nil), prizes...)
	entry.judges = append([]string(nil), judges...)
}

// AddProject appends a submission and returns its id
func (l *MemoryLedger) AddProject(hackathonID uint64, p core.Project) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.hackathons[hackathonID]
	if !ok {
		return 0, fmt.Errorf("hackathon %d: %w", hackathonID, core.ErrEntityNotFound)
	}
	p.HackathonID = hackathonID
	p.ProjectID = uint64(len(entry.projects)) + 1
	entry.projects[p.ProjectID] = p
	entry.hackathon.ProjectCount = uint64(len(entry.projects))
	return p.ProjectID, nil
}

// AddJudge assigns a judge to a hackathon
func (l *MemoryLedger) AddJudge(hackathonID uint64, address string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.hackathons[hackathonID]
	if !ok {
		return fmt.Errorf("hackathon %d: %w", hackathonID, core.ErrEntityNotFound)
	}
	entry.judges = append(entry.judges, address)
	entry.hackathon.JudgeCount = uint64(len(entry.judges))
	return nil
}

// SetActive toggles the active flag of a hackathon
func (l *MemoryLedger) SetActive(hackathonID uint64, active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.hackathons[hackathonID]; ok {
		entry.hackathon.Active = active
	}
}

// Fail makes every read of the entity return err until cleared with a nil
// err. Keys are "count" or "<entity>:<external id>".
func (l *MemoryLedger) Fail(key string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.failures, key)
		return
	}
	l.failures[key] = err
}

// Calls returns how many reads the ledger has served
func (l *MemoryLedger) Calls() int64 {
	return l.calls.Load()
}

// FailureKey builds the key Fail expects
func FailureKey(entity core.EntityType, externalID string) string {
	return string(entity) + ":" + externalID
}

func (l *MemoryLedger) enter(ctx context.Context, key string) error {
	l.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrLedgerUnreachable, err)
	}
	if err, ok := l.failures[key]; ok {
		return err
	}
	return nil
}

func (l *MemoryLedger) CountHackathons(ctx context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.enter(ctx, "count"); err != nil {
		return 0, err
	}
	// Ids run 1..count, unused ids read as not found
	var highest uint64
	for id := range l.hackathons {
		highest = max(highest, id)
	}
	return highest, nil
}

func (l *MemoryLedger) GetHackathon(ctx context.Context, id uint64) (*core.Hackathon, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.enter(ctx, FailureKey(core.EntityHackathon, core.HackathonExternalID(id))); err != nil {
		return nil, err
	}
	entry, ok := l.hackathons[id]
	if !ok {
		return nil, fmt.Errorf("hackathon %d: %w", id, core.ErrEntityNotFound)
	}
	h := entry.hackathon
	h.PrizePoolBaseUnits = copyInt(h.PrizePoolBaseUnits)
	return &h, nil
}

func (l *MemoryLedger) GetPrizes(ctx context.Context, id uint64) ([]core.Prize, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.enter(ctx, FailureKey(core.EntityPrize, core.HackathonExternalID(id))); err != nil {
		return nil, err
	}
	entry, ok := l.hackathons[id]
	if !ok {
		return nil, fmt.Errorf("hackathon %d: %w", id, core.ErrEntityNotFound)
	}
	prizes := make([]core.Prize, 0, len(entry.prizes))
	for _, p := range entry.prizes {
		p.HackathonID = id
		p.AmountBaseUnits = copyInt(p.AmountBaseUnits)
		prizes = append(prizes, p)
	}
	return prizes, nil
}

func (l *MemoryLedger) GetJudges(ctx context.Context, id uint64) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.enter(ctx, FailureKey(core.EntityJudge, core.HackathonExternalID(id))); err != nil {
		return nil, err
	}
	entry, ok := l.hackathons[id]
	if !ok {
		return nil, fmt.Errorf("hackathon %d: %w", id, core.ErrEntityNotFound)
	}
	return append([]string(nil), entry.judges...), nil
}

func (l *MemoryLedger) GetProject(ctx context.Context, hackathonID, projectID uint64) (*core.Project, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.enter(ctx, FailureKey(core.EntityProject, core.ProjectExternalID(hackathonID, projectID))); err != nil {
		return nil, err
	}
	entry, ok := l.hackathons[hackathonID]
	if !ok {
		return nil, fmt.Errorf("hackathon %d: %w", hackathonID, core.ErrEntityNotFound)
	}
	p, ok := entry.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("project %d/%d: %w", hackathonID, projectID, core.ErrEntityNotFound)
	}
	p.Links = append([]string(nil), p.Links...)
	return &p, nil
}

func (l *MemoryLedger) IsJudge(ctx context.Context, hackathonID uint64, address string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.enter(ctx, FailureKey(core.EntityJudge, core.JudgeExternalID(hackathonID, address))); err != nil {
		return false, err
	}
	entry, ok := l.hackathons[hackathonID]
	if !ok {
		return false, fmt.Errorf("hackathon %d: %w", hackathonID, core.ErrEntityNotFound)
	}
	for _, j := range entry.judges {
		if strings.EqualFold(j, address) {
			return true, nil
		}
	}
	return false, nil
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
