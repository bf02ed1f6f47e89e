package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"

	AuthorizationHeader = "Authorization"
	Bearer              = "Bearer "
)

type Config struct {
	Secret string        `yaml:"secret" envconfig:"JWT_SECRET" default:"change-me-in-production"`
	TTL    time.Duration `yaml:"ttl" envconfig:"JWT_TTL" default:"168h"`
}

// Claims is the token payload: who the caller is and what they may do.
type Claims struct {
	Profile struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	} `json:"profile"`
	jwt.RegisteredClaims
}

// NewToken issues a signed HS256 token for the given user.
func NewToken(cfg Config, userID, role string) (string, time.Time, error) {
	expiresAt := time.Now().Add(cfg.TTL)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	claims.Profile.UserID = userID
	claims.Profile.Role = role

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func ParseToken(cfg Config, tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Actor is the authenticated caller attached to a request.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type ctxKey int

const actorKey ctxKey = iota + 1

func SetAuthContext(ctx context.Context, userID, role string) context.Context {
	return context.WithValue(ctx, actorKey, Actor{UserID: userID, Role: role})
}

func FromContext(ctx context.Context) (Actor, error) {
	actor, ok := ctx.Value(actorKey).(Actor)
	if !ok {
		return Actor{}, errors.New("no actor in context")
	}
	return actor, nil
}
