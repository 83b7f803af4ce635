package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
)

//go:embed registry.abi.json
var registryABI string

// DefaultCallTimeout bounds a single eth_call
const DefaultCallTimeout = 10 * time.Second

// prizeTuple mirrors the components of the getPrizes tuple
type prizeTuple struct {
	Title    string
	Amount   *big.Int
	Position *big.Int
}

// ContractReader reads the hackathon registry contract through eth_call
type ContractReader struct {
	caller   ethereum.ContractCaller
	contract common.Address
	abi      abi.ABI
	timeout  time.Duration
}

// NewContractReader creates a ledger reader for the registry at contract.
// caller is usually an *ethclient.Client.
func NewContractReader(caller ethereum.ContractCaller, contract common.Address, timeout time.Duration) (ports.LedgerReader, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry abi: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &ContractReader{
		caller:   caller,
		contract: contract,
		abi:      parsed,
		timeout:  timeout,
	}, nil
}

// CountHackathons returns the number of hackathons, ids run 1..count
func (r *ContractReader) CountHackathons(ctx context.Context) (uint64, error) {
	out, err := r.call(ctx, "hackathonCount")
	if err != nil {
		return 0, err
	}
	return toUint64("hackathonCount", out[0])
}

// GetHackathon reads one hackathon
func (r *ContractReader) GetHackathon(ctx context.Context, id uint64) (*core.Hackathon, error) {
	out, err := r.call(ctx, "getHackathon", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}

	organizer := out[2].(common.Address)
	if organizer == (common.Address{}) {
		return nil, fmt.Errorf("hackathon %d: %w", id, core.ErrEntityNotFound)
	}

	h := &core.Hackathon{
		ExternalID:         id,
		Name:               out[0].(string),
		Description:        out[1].(string),
		OrganizerAddress:   organizer.Hex(),
		PrizePoolBaseUnits: out[3].(*big.Int),
		Active:             out[6].(bool),
	}
	if h.ProjectCount, err = toUint64("projectCount", out[4]); err != nil {
		return nil, err
	}
	if h.JudgeCount, err = toUint64("judgeCount", out[5]); err != nil {
		return nil, err
	}
	if h.RegistrationDeadline, err = toTime("registrationDeadline", out[7]); err != nil {
		return nil, err
	}
	if h.StartDate, err = toTime("startDate", out[8]); err != nil {
		return nil, err
	}
	if h.EndDate, err = toTime("endDate", out[9]); err != nil {
		return nil, err
	}
	return h, nil
}

// GetPrizes reads the prizes of a hackathon
func (r *ContractReader) GetPrizes(ctx context.Context, id uint64) ([]core.Prize, error) {
	out, err := r.call(ctx, "getPrizes", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	tuples := *abi.ConvertType(out[0], new([]prizeTuple)).(*[]prizeTuple)

	prizes := make([]core.Prize, 0, len(tuples))
	for _, t := range tuples {
		position, err := toUint64("position", t.Position)
		if err != nil {
			return nil, err
		}
		prizes = append(prizes, core.Prize{
			HackathonID:     id,
			Title:           t.Title,
			AmountBaseUnits: t.Amount,
			Position:        position,
		})
	}
	return prizes, nil
}

// GetJudges reads the judge addresses of a hackathon
func (r *ContractReader) GetJudges(ctx context.Context, id uint64) ([]string, error) {
	out, err := r.call(ctx, "getJudges", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	addrs := out[0].([]common.Address)
	judges := make([]string, 0, len(addrs))
	for _, a := range addrs {
		judges = append(judges, a.Hex())
	}
	return judges, nil
}

// GetProject reads one project submission
func (r *ContractReader) GetProject(ctx context.Context, hackathonID, projectID uint64) (*core.Project, error) {
	out, err := r.call(ctx, "getProject", new(big.Int).SetUint64(hackathonID), new(big.Int).SetUint64(projectID))
	if err != nil {
		return nil, err
	}

	participant := out[3].(common.Address)
	if participant == (common.Address{}) {
		return nil, fmt.Errorf("project %d/%d: %w", hackathonID, projectID, core.ErrEntityNotFound)
	}
	submitted, err := toTime("submittedAt", out[4])
	if err != nil {
		return nil, err
	}
	return &core.Project{
		HackathonID:         hackathonID,
		ProjectID:           projectID,
		Name:                out[0].(string),
		Description:         out[1].(string),
		Links:               out[2].([]string),
		ParticipantAddress:  participant.Hex(),
		SubmissionTimestamp: submitted,
	}, nil
}

// IsJudge asks the ledger whether address judges the hackathon
func (r *ContractReader) IsJudge(ctx context.Context, hackathonID uint64, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("%q: %w", address, core.ErrInvalidAddress)
	}
	out, err := r.call(ctx, "isJudge", new(big.Int).SetUint64(hackathonID), common.HexToAddress(address))
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (r *ContractReader) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return nil, classifyCallError(method, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s returned no data, is %s a registry contract: %w", method, r.contract.Hex(), core.ErrLedgerUnreachable)
	}

	out, err := r.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w: %w", method, core.ErrLedgerUnreachable, err)
	}
	return out, nil
}

func classifyCallError(method string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", method, core.ErrLedgerUnreachable, err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return fmt.Errorf("%s: %w: %v", method, core.ErrEntityNotFound, err)
	}
	return fmt.Errorf("%s: %w: %w", method, core.ErrLedgerUnreachable, err)
}

func toUint64(field string, v any) (uint64, error) {
	n, ok := v.(*big.Int)
	if !ok || n == nil || !n.IsUint64() {
		return 0, fmt.Errorf("%s out of range: %w", field, core.ErrLedgerUnreachable)
	}
	return n.Uint64(), nil
}

func toTime(field string, v any) (time.Time, error) {
	secs, err := toUint64(field, v)
	if err != nil {
		return time.Time{}, err
	}
	if secs == 0 {
		return time.Time{}, nil
	}
	if secs > math.MaxInt64 {
		return time.Time{}, fmt.Errorf("%s out of range: %w", field, core.ErrLedgerUnreachable)
	}
	return time.Unix(int64(secs), 0).UTC(), nil
}
