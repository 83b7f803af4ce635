package signature

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
)

// PersonalVerifier verifies EIP-191 personal_sign signatures
type PersonalVerifier struct{}

// NewPersonalVerifier creates a new personal message verifier
func NewPersonalVerifier() ports.SignatureVerifier {
	return PersonalVerifier{}
}

// Verify recovers the signer of message and compares it to claimedAddress
func (PersonalVerifier) Verify(message string, signature []byte, claimedAddress string) bool {
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return false
	}
	if !common.IsHexAddress(claimedAddress) {
		return false
	}
	return strings.EqualFold(recovered.Hex(), common.HexToAddress(claimedAddress).Hex())
}

// RecoverAddress returns the address that produced signature over message
func RecoverAddress(message string, signature []byte) (common.Address, error) {
	if len(signature) != core.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", core.SignatureLength, core.ErrInvalidSignature)
	}
	sig := make([]byte, core.SignatureLength)
	copy(sig, signature)

	// Wallets emit v as 27/28, crypto expects 0/1
	switch sig[64] {
	case 27, 28:
		sig[64] -= 27
	case 0, 1:
	default:
		return common.Address{}, fmt.Errorf("invalid recovery id %d: %w", signature[64], core.ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover pubkey: %w", core.ErrInvalidSignature)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignMessage produces a personal_sign signature with v in {27, 28}
func SignMessage(message string, sign func(digest []byte) ([]byte, error)) ([]byte, error) {
	sig, err := sign(accounts.TextHash([]byte(message)))
	if err != nil {
		return nil, err
	}
	if len(sig) == core.SignatureLength && sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}
