package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keithlinneman/linnemanlabs-cms/internal/xerrors"
)

// MinSecretLen is the shortest HMAC secret accepted.
const MinSecretLen = 16

// Claims carried by an admin token. Subject repeats the username.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Tokens issues and validates HS256 tokens.
type Tokens struct {
	Secret []byte
	TTL    time.Duration
	Issuer string

	// now is replaced in tests.
	now func() time.Time
}

func NewTokens(secret []byte, ttl time.Duration, issuer string) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if len(secret) < MinSecretLen {
		return nil, xerrors.Newf("jwt secret must be at least %d bytes", MinSecretLen)
	}
	if ttl <= 0 {
		return nil, xerrors.New("token ttl must be positive")
	}
	return &Tokens{Secret: secret, TTL: ttl, Issuer: issuer, now: time.Now}, nil
}

func (t *Tokens) clock() time.Time {
	if t.now == nil {
		return time.Now()
	}
	return t.now()
}

// Issue signs a token for username and returns it with its expiry.
func (t *Tokens) Issue(username string) (string, time.Time, error) {
	now := t.clock()
	exp := now.Add(t.TTL)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    t.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, xerrors.Wrap(err, "sign token")
	}
	return signed, exp.Truncate(time.Second), nil
}

// Validate checks signature, algorithm, expiry and issuer. Every failure
// wraps ErrInvalidToken.
func (t *Tokens) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock),
	}
	if t.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
