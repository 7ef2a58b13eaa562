package auth_test

import (
	"errors"
	"testing"

	"tempoline/internal/auth"
	"tempoline/internal/domain"
)

const secret = "test-secret"

func TestSignAuthenticateRoundTrip(t *testing.T) {
	token, err := auth.Sign(domain.Actor{ID: 42, Rank: domain.RankAdmin}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	actor, err := auth.Authenticate(token, secret)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if actor.ID != 42 || actor.Rank != domain.RankAdmin {
		t.Fatalf("actor: %+v", actor)
	}
}

func TestAuthenticateWrongSecret(t *testing.T) {
	token, err := auth.Sign(domain.Actor{ID: 1, Rank: domain.RankStaff}, secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.Authenticate(token, "other-secret"); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestAuthenticateMissingRankDefaultsToStaff(t *testing.T) {
	token, err := auth.Sign(domain.Actor{ID: 7}, secret)
	if err != nil {
		t.Fatal(err)
	}
	actor, err := auth.Authenticate(token, secret)
	if err != nil {
		t.Fatal(err)
	}
	if actor.Rank != domain.RankStaff {
		t.Fatalf("rank: %q", actor.Rank)
	}
}

func TestScopeManagerID(t *testing.T) {
	manager := domain.Actor{ID: 5, Rank: domain.RankManager}
	admin := domain.Actor{ID: 1, Rank: domain.RankAdmin}
	other := int64(9)

	if got, err := auth.ScopeManagerID(manager, nil); err != nil || got != 5 {
		t.Fatalf("self scope: %d %v", got, err)
	}
	if got, err := auth.ScopeManagerID(admin, &other); err != nil || got != 9 {
		t.Fatalf("admin on behalf: %d %v", got, err)
	}
	_, err := auth.ScopeManagerID(manager, &other)
	var forbidden auth.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	if err := auth.RequireAdmin(domain.Actor{ID: 1, Rank: domain.RankAdmin}); err != nil {
		t.Fatalf("admin: %v", err)
	}
	var forbidden auth.ForbiddenError
	if err := auth.RequireAdmin(domain.Actor{ID: 2, Rank: domain.RankManager}); !errors.As(err, &forbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
