package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the verified identity of a caller. It is immutable once
// established and scoped to a single request.
type Principal struct {
	UserID uint64
	Email  string
}

// Verifier validates a raw bearer credential and yields the principal
// behind it. Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(ctx context.Context, rawCredential string) (Principal, error)
}

type Claims struct {
	UserID uint64 `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens signed with a shared secret and a
// fixed issuer. Verification has no side effects and the same credential
// always yields the same result (until it expires).
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) Verify(ctx context.Context, rawCredential string) (Principal, error) {
	_ = ctx // verification is local, no I/O

	raw := strings.TrimSpace(rawCredential)
	if raw == "" {
		return Principal{}, &Error{Reason: ReasonMissing}
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, &Error{Reason: classifyJWTErr(err), Err: err}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return Principal{}, &Error{Reason: ReasonMalformed}
	}
	return Principal{UserID: claims.UserID, Email: claims.Email}, nil
}

func classifyJWTErr(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ReasonSignatureInvalid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ReasonIssuerMismatch
	default:
		return ReasonMalformed
	}
}

// SignJWT mints a token the verifier accepts. Used by /login and /users.
func SignJWT(userID uint64, email, secret, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
