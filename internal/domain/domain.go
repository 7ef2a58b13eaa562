package domain

import (
	"fmt"
	"strings"
)

// Periodicity is the closed set of deliverable cadences.
type Periodicity string

const (
	PeriodicityDaily         Periodicity = "daily"
	PeriodicityWeekly        Periodicity = "weekly"
	PeriodicityMonthly       Periodicity = "monthly"
	PeriodicityBimonthly     Periodicity = "bimonthly"
	PeriodicityQuarterly     Periodicity = "quarterly"
	PeriodicitySemiannual    Periodicity = "semiannual"
	PeriodicityAnnual        Periodicity = "annual"
	PeriodicityNotApplicable Periodicity = "not_applicable"
)

// Periodicities lists every valid periodicity in display order.
var Periodicities = []Periodicity{
	PeriodicityDaily,
	PeriodicityWeekly,
	PeriodicityMonthly,
	PeriodicityBimonthly,
	PeriodicityQuarterly,
	PeriodicitySemiannual,
	PeriodicityAnnual,
	PeriodicityNotApplicable,
}

func (p Periodicity) Valid() bool {
	for _, known := range Periodicities {
		if p == known {
			return true
		}
	}
	return false
}

// Rank is the actor role used for scoping; only Admin may act on behalf
// of another manager.
type Rank string

const (
	RankStaff   Rank = "Staff"
	RankSenior  Rank = "Senior"
	RankManager Rank = "Manager"
	RankAdmin   Rank = "Admin"
)

func (r Rank) Valid() bool {
	switch r {
	case RankStaff, RankSenior, RankManager, RankAdmin:
		return true
	}
	return false
}

// Actor is the authenticated identity handed in by the caller.
type Actor struct {
	ID   int64 `json:"id"`
	Rank Rank  `json:"rank"`
}

type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Rank      Rank   `json:"rank"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// NewUser builds a user record, trimming and rejecting blank identity
// fields before anything reaches the store.
func NewUser(name, email string, rank Rank, now string) (User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return User{}, &ValidationError{Field: "name", Reason: "is required"}
	}
	if email == "" {
		return User{}, &ValidationError{Field: "email", Reason: "is required"}
	}
	if !rank.Valid() {
		return User{}, &ValidationError{Field: "rank", Reason: fmt.Sprintf("%q is not a valid rank", rank)}
	}
	return User{Name: name, Email: email, Rank: rank, CreatedAt: now, UpdatedAt: now}, nil
}

type EligibleEngagement struct {
	ID             int64  `json:"id"`
	EngagementCode string `json:"engagement_code"`
	EngagementName string `json:"engagement_name"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

type EligibleTask struct {
	ID           int64  `json:"id"`
	Macroprocess string `json:"macroprocess"`
	Process      string `json:"process"`
	Label        string `json:"label"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type EligibleDeliverable struct {
	ID          int64       `json:"id"`
	Label       string      `json:"label"`
	Periodicity Periodicity `json:"periodicity"`
	CreatedAt   string      `json:"created_at" format:"date-time"`
	UpdatedAt   string      `json:"updated_at" format:"date-time"`
}

// ManagerEngagement is the aggregate root: one manager's customized view of
// an engagement, together with its owned task and deliverable rows. The
// eligible_* ids are weak references; they may dangle and are never healed
// on catalog deletion.
type ManagerEngagement struct {
	ID                   int64                   `json:"id"`
	ManagerID            int64                   `json:"manager_id"`
	EngagementCode       string                  `json:"engagement_code"`
	EngagementName       string                  `json:"engagement_name"`
	EligibleEngagementID *int64                  `json:"eligible_engagement_id,omitempty"`
	Tasks                []EngagementTask        `json:"tasks"`
	Deliverables         []EngagementDeliverable `json:"deliverables"`
	CreatedAt            string                  `json:"created_at" format:"date-time"`
	UpdatedAt            string                  `json:"updated_at" format:"date-time"`
}

type EngagementTask struct {
	ID                  int64  `json:"id"`
	ManagerEngagementID int64  `json:"manager_engagement_id"`
	Label               string `json:"label"`
	EligibleTaskID      *int64 `json:"eligible_task_id,omitempty"`
	CreatedAt           string `json:"created_at" format:"date-time"`
	UpdatedAt           string `json:"updated_at" format:"date-time"`
}

type EngagementDeliverable struct {
	ID                    int64  `json:"id"`
	ManagerEngagementID   int64  `json:"manager_engagement_id"`
	Label                 string `json:"label"`
	EligibleDeliverableID *int64 `json:"eligible_deliverable_id,omitempty"`
	// Periodicity is derived at read time from the linked catalog entry;
	// nil when the reference is absent or dangling.
	Periodicity *Periodicity `json:"periodicity,omitempty"`
	CreatedAt   string       `json:"created_at" format:"date-time"`
	UpdatedAt   string       `json:"updated_at" format:"date-time"`
}

// ManagerGroup is one bucket of the admin-wide grouped listing.
type ManagerGroup struct {
	Manager     User                `json:"manager"`
	Engagements []ManagerEngagement `json:"engagements"`
}
