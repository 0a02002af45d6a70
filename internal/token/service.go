// Package token issues and verifies the signed bearer tokens returned by a
// successful login. A token binds a subject (the username) to an expiry; it
// carries no other authorization data. The service is a pure function of its
// input plus the configured key, performs no I/O and is safe for unlimited
// concurrent use.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned by Subject when a token is malformed, carries a
// bad signature or uses an unexpected signing algorithm.
var ErrInvalidToken = errors.New("invalid token")

// Token is a signed JWT together with its expiry. Two tokens issued for the
// same subject are always distinct byte strings because each carries a random
// jti claim.
type Token struct {
	Value     string    // the serialized JWT string
	ExpiresAt time.Time // UTC expiration time
}

// Service signs and verifies HS256 tokens. The key and lifetime are injected
// at construction so they can be rotated without touching this package; there
// is no package-level key state.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New builds a Service from the configured signing secret and token lifetime.
func New(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Tests use this to exercise expiry
// without sleeping.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TTL reports the configured token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs a token asserting that subject was authenticated, valid from
// now until now plus the configured lifetime. The subject must be non-empty.
func (s *Service) Issue(subject string) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("token: empty subject")
	}
	now := s.now()
	exp := now.Add(s.ttl)
	jti, err := randomHex(16)
	if err != nil {
		return Token{}, err
	}
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": exp.Unix(),
		"jti": jti,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Validate reports whether the token's signature verifies against the
// configured key and the token has not expired. It never returns an error;
// any malformed, truncated, tampered or expired token is simply false.
func (s *Service) Validate(raw string) bool {
	tok, err := s.parse(raw)
	return err == nil && tok.Valid
}

// Subject extracts the subject from a structurally valid, correctly signed
// token. Callers that need a non-failing check should call Validate first.
func (s *Service) Subject(raw string) (string, error) {
	tok, err := s.parse(raw)
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

func (s *Service) parse(raw string) (*jwt.Token, error) {
	return jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything other than HMAC; an attacker
		// must not be able to downgrade the algorithm.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
