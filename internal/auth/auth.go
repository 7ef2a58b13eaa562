package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"tempoline/internal/domain"
)

// ForbiddenError indicates an actor acting outside their rank.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	return "forbidden: " + e.Reason
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Rank string `json:"rank,omitempty"`
}

// Authenticate verifies an HS256 bearer token and maps it to an actor. The
// subject claim carries the user id and the rank claim the user's rank;
// a missing rank falls back to Staff.
func Authenticate(token, secret string) (domain.Actor, error) {
	var zero domain.Actor
	if strings.TrimSpace(secret) == "" {
		return zero, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return zero, err
	}
	if !parsed.Valid {
		return zero, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return zero, errors.New("subject claim required")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return zero, fmt.Errorf("subject claim is not a user id: %w", err)
	}
	rank := domain.Rank(claims.Rank)
	if claims.Rank == "" {
		rank = domain.RankStaff
	}
	if !rank.Valid() {
		return zero, fmt.Errorf("unknown rank %q", claims.Rank)
	}
	return domain.Actor{ID: id, Rank: rank}, nil
}

// Sign issues an HS256 token for an actor, for the CLI and for tests.
func Sign(actor domain.Actor, secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(actor.ID, 10)},
		Rank:             string(actor.Rank),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ScopeManagerID decides which manager's engagements an actor may touch.
// Admins may act for any explicit manager id; everyone else is scoped to
// themselves.
func ScopeManagerID(actor domain.Actor, onBehalfOf *int64) (int64, error) {
	if onBehalfOf == nil || *onBehalfOf == actor.ID {
		return actor.ID, nil
	}
	if actor.Rank != domain.RankAdmin {
		return 0, ForbiddenError{Reason: "only admins may act for another manager"}
	}
	return *onBehalfOf, nil
}

// RequireAdmin gates admin-only operations such as the grouped listing.
func RequireAdmin(actor domain.Actor) error {
	if actor.Rank != domain.RankAdmin {
		return ForbiddenError{Reason: "admin rank required"}
	}
	return nil
}
