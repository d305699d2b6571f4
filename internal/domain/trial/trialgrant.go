package trial

import (
	"errors"
	"fmt"
	"time"

	"github.com/relaygate/relaygate/internal/domain/subscriber"
	subvo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
)

var (
	ErrTrialNotEligible = errors.New("subscriber is not eligible for a trial")
	// ErrActiveGrantExists is returned by the repository when the one-active-grant
	// unique index rejects an insert.
	ErrActiveGrantExists = errors.New("subscriber already holds an active trial")
)

// Policy decides whether a second grant is possible after the first one ends.
type Policy string

const (
	PolicyFirstOnly   Policy = "first_only"
	PolicyAfterExpiry Policy = "after_expiry"
)

func (p Policy) IsValid() bool {
	return p == PolicyFirstOnly || p == PolicyAfterExpiry
}

// History is what eligibility is decided from.
type History struct {
	HasActiveGrant bool
	TotalGrants    int64
}

// IsEligible is false while a grant is active, and under first_only also once any
// grant has ever existed.
func (p Policy) IsEligible(h History) bool {
	if h.HasActiveGrant {
		return false
	}
	if p == PolicyAfterExpiry {
		return true
	}
	return h.TotalGrants == 0
}

// Grant is one free, time and traffic bounded entitlement.
type Grant struct {
	id           uint
	subscriberID uint
	durationDays int
	trafficGB    float64
	startedAt    time.Time
	expiresAt    time.Time
	active       bool
}

func NewGrant(subscriberID uint, durationDays int, trafficGB float64, now time.Time) (*Grant, error) {
	if subscriberID == 0 {
		return nil, fmt.Errorf("subscriber id is required")
	}
	if durationDays <= 0 {
		return nil, fmt.Errorf("trial duration must be positive")
	}
	if trafficGB < 0 {
		return nil, fmt.Errorf("trial traffic cannot be negative")
	}
	return &Grant{
		subscriberID: subscriberID,
		durationDays: durationDays,
		trafficGB:    trafficGB,
		startedAt:    now,
		expiresAt:    now.Add(time.Duration(durationDays) * 24 * time.Hour),
		active:       true,
	}, nil
}

// Entitlement is what the grant applies to the subscriber.
func (g *Grant) Entitlement() subscriber.Entitlement {
	return subscriber.Entitlement{
		Days:           g.durationDays,
		TrafficLimitGB: g.trafficGB,
		Source:         subvo.SourceTrial,
	}
}

// IsActiveAt is true for an active grant that has not reached its expiry.
func (g *Grant) IsActiveAt(now time.Time) bool {
	return g.active && now.Before(g.expiresAt)
}

// Expire deactivates the grant, freeing the one-active-grant slot.
func (g *Grant) Expire() {
	g.active = false
}

func (g *Grant) ID() uint             { return g.id }
func (g *Grant) SubscriberID() uint   { return g.subscriberID }
func (g *Grant) DurationDays() int    { return g.durationDays }
func (g *Grant) TrafficGB() float64   { return g.trafficGB }
func (g *Grant) StartedAt() time.Time { return g.startedAt }
func (g *Grant) ExpiresAt() time.Time { return g.expiresAt }
func (g *Grant) Active() bool         { return g.active }

func (g *Grant) SetID(id uint) { g.id = id }

func ReconstructGrant(id, subscriberID uint, durationDays int, trafficGB float64, startedAt, expiresAt time.Time, active bool) *Grant {
	return &Grant{
		id:           id,
		subscriberID: subscriberID,
		durationDays: durationDays,
		trafficGB:    trafficGB,
		startedAt:    startedAt,
		expiresAt:    expiresAt,
		active:       active,
	}
}
