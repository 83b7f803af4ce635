package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
)

const AudienceSession = "hackledger:session"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey}
}

// SessionToToken converts a Session to a signed token
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Address,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		IdentityID: session.IdentityID,
		Role:       session.Role.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToSession parses a session token. Expired tokens return
// core.ErrSessionExpired, anything else unverifiable core.ErrInvalidToken.
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceSession), jwt.WithIssuedAt(), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to parse token: %w: %w", core.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("invalid claims: %w", core.ErrInvalidToken)
	}
	role, err := core.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("invalid role claim: %w", core.ErrInvalidToken)
	}

	return &core.Session{
		ID:         claims.ID,
		IdentityID: claims.IdentityID,
		Address:    claims.Subject,
		Role:       role,
		IssuedAt:   claims.IssuedAt.Time,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}

// LoadOrGenerateKey reads a PEM encoded EC private key from path. An empty
// path or a missing file yields a fresh P-256 key, which is written to path
// when one is given.
func LoadOrGenerateKey(path string) (*ecdsa.PrivateKey, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			block, _ := pem.Decode(data)
			if block == nil {
				return nil, fmt.Errorf("no PEM block in %s", path)
			}
			key, err := x509.ParseECPrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse session key: %w", err)
			}
			return key, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read session key: %w", err)
		}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	if path == "" {
		return key, nil
	}

	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session key: %w", err)
	}
	out := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write session key: %w", err)
	}
	return key, nil
}
