// Package auth verifies API bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ModeDev  = "dev"
	ModeHMAC = "hmac"

	RoleAdmin = "admin"
	RoleUser  = "user"
)

var ErrUnauthorized = errors.New("unauthorized")

// Principal is the authenticated caller. Sessions are owned by OwnerID.
type Principal struct {
	OwnerID string
	Role    string
}

// IsAdmin reports whether the principal may act on every owner's sessions.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Claims carried by hmac tokens. The owner is the JWT subject.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier supports modes dev (token "owner:role", unsigned) and hmac (HS256).
type Verifier struct {
	Mode   string
	Secret []byte
}

func NewVerifier(mode, secret string) (*Verifier, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = ModeDev
	}
	switch mode {
	case ModeDev:
	case ModeHMAC:
		if secret == "" {
			return nil, errors.New("auth: hmac mode needs a secret")
		}
	default:
		return nil, fmt.Errorf("auth: unsupported mode %q", mode)
	}
	return &Verifier{Mode: mode, Secret: []byte(secret)}, nil
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == ModeDev {
		owner, role, ok := strings.Cut(token, ":")
		if !ok || owner == "" {
			return Principal{}, fmt.Errorf("%w: dev token must be owner:role", ErrUnauthorized)
		}
		return Principal{OwnerID: owner, Role: normalizeRole(role)}, nil
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	return Principal{OwnerID: claims.Subject, Role: normalizeRole(claims.Role)}, nil
}

// Issue signs an hmac token. Used by tooling and tests.
func (v *Verifier) Issue(p Principal, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = p.OwnerID
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: p.Role, RegisteredClaims: claims})
	return tok.SignedString(v.Secret)
}

func normalizeRole(r string) string {
	r = strings.ToLower(strings.TrimSpace(r))
	if r == "" {
		return RoleUser
	}
	return r
}
