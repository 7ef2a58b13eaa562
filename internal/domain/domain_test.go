package domain_test

import (
	"errors"
	"testing"

	"tempoline/internal/domain"
)

func TestNewUserRejectsBlankFields(t *testing.T) {
	cases := []struct {
		name  string
		email string
		rank  domain.Rank
		field string
	}{
		{"", "a@example.com", domain.RankStaff, "name"},
		{"   ", "a@example.com", domain.RankStaff, "name"},
		{"Alice", "", domain.RankStaff, "email"},
		{"Alice", "  ", domain.RankStaff, "email"},
		{"Alice", "a@example.com", domain.Rank("Partner"), "rank"},
	}
	for _, tc := range cases {
		_, err := domain.NewUser(tc.name, tc.email, tc.rank, "2026-01-01T00:00:00Z")
		var vErr *domain.ValidationError
		if !errors.As(err, &vErr) || vErr.Field != tc.field {
			t.Fatalf("NewUser(%q, %q, %q): got %v, want %s validation error", tc.name, tc.email, tc.rank, err, tc.field)
		}
	}
}

func TestNewUserTrims(t *testing.T) {
	u, err := domain.NewUser("  Alice ", " alice@example.com ", domain.RankManager, "2026-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if u.Name != "Alice" || u.Email != "alice@example.com" {
		t.Fatalf("fields not trimmed: %+v", u)
	}
	if u.CreatedAt != u.UpdatedAt || u.CreatedAt == "" {
		t.Fatalf("timestamps: %+v", u)
	}
}
