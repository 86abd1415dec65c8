package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/muthu-raja18/QuickServe-sub001/fault"
)

type Role string

const (
	RoleSeeker   Role = "seeker"
	RoleProvider Role = "provider"
)

// Valid reports whether r is one of the two marketplace roles.
func (r Role) Valid() bool {
	return r == RoleSeeker || r == RoleProvider
}

// Actor is the authenticated caller every transition is authorized against.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsSeeker() bool   { return a.ID != "" && a.Role == RoleSeeker }
func (a Actor) IsProvider() bool { return a.ID != "" && a.Role == RoleProvider }

var (
	// ErrUnauthenticated signals a missing or malformed credential.
	ErrUnauthenticated = fault.New(fault.KindForbidden, "identity: unauthenticated")
	// ErrInvalidToken signals a token that failed signature or claim checks.
	ErrInvalidToken = fault.New(fault.KindForbidden, "identity: invalid token")
)

type ctxKey struct{}

// WithActor stores the actor on ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok && a.ID != ""
}

// Verifier checks HS256 bearer tokens carrying sub and role claims.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses a raw token, or an Authorization header value, into an Actor.
func (v *Verifier) Verify(raw string) (Actor, error) {
	raw = strings.TrimLeft(raw, " \t")
	const scheme = "bearer"
	if len(raw) >= len(scheme) && strings.EqualFold(raw[:len(scheme)], scheme) {
		if rest := raw[len(scheme):]; rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			raw = rest
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Actor{}, ErrUnauthenticated
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Actor{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Actor{}, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	roleStr, _ := claims["role"].(string)
	role := Role(roleStr)
	if !role.Valid() {
		return Actor{}, fmt.Errorf("%w: role %q", ErrInvalidToken, roleStr)
	}
	return Actor{ID: sub, Role: role}, nil
}

// Issuer mints tokens. The marketplace's identity provider owns sign-in; this
// exists for local tooling and tests.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) Issue(a Actor) (string, error) {
	if a.ID == "" || !a.Role.Valid() {
		return "", errors.New("identity: actor needs id and valid role")
	}
	now := i.now()
	claims := jwt.MapClaims{
		"sub":  a.ID,
		"role": string(a.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}
