package plan

import (
	"errors"
	"fmt"
	"time"

	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/domain/subscriber"
	subvo "github.com/relaygate/relaygate/internal/domain/subscriber/valueobjects"
)

var (
	ErrPlanNotFound = errors.New("plan not found")
	ErrPlanInactive = errors.New("plan inactive")
	// ErrPlanReferenced blocks edits to a plan that a payment already points at.
	ErrPlanReferenced = errors.New("plan is referenced by payments and cannot be changed")
)

// Plan is a purchasable entitlement. Its terms are frozen once a payment references it.
type Plan struct {
	id             uint
	name           string
	durationDays   int
	trafficLimitGB float64
	deviceLimit    int
	price          vo.Money
	isActive       bool
	sortOrder      int
	createdAt      time.Time
	updatedAt      time.Time
}

type Terms struct {
	Name           string
	DurationDays   int
	TrafficLimitGB float64
	DeviceLimit    int
	Price          vo.Money
}

func (t Terms) validate() error {
	if t.Name == "" {
		return fmt.Errorf("plan name is required")
	}
	if len(t.Name) > 100 {
		return fmt.Errorf("plan name too long (max 100 characters)")
	}
	if t.DurationDays <= 0 {
		return fmt.Errorf("plan duration must be positive")
	}
	if t.TrafficLimitGB < 0 {
		return fmt.Errorf("traffic limit cannot be negative")
	}
	if t.DeviceLimit < 0 {
		return fmt.Errorf("device limit cannot be negative")
	}
	if !t.Price.IsPositive() || t.Price.Currency() == "" {
		return fmt.Errorf("plan price must be positive with a currency")
	}
	if !vo.IsSupportedCurrency(t.Price.Currency()) {
		return fmt.Errorf("unsupported currency %q", t.Price.Currency())
	}
	return nil
}

func NewPlan(terms Terms, now time.Time) (*Plan, error) {
	if err := terms.validate(); err != nil {
		return nil, err
	}
	return &Plan{
		name:           terms.Name,
		durationDays:   terms.DurationDays,
		trafficLimitGB: terms.TrafficLimitGB,
		deviceLimit:    terms.DeviceLimit,
		price:          terms.Price,
		isActive:       true,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// Revise changes the terms of a plan that no payment references yet.
func (p *Plan) Revise(terms Terms, referenced bool, now time.Time) error {
	if referenced {
		return ErrPlanReferenced
	}
	if err := terms.validate(); err != nil {
		return err
	}
	p.name = terms.Name
	p.durationDays = terms.DurationDays
	p.trafficLimitGB = terms.TrafficLimitGB
	p.deviceLimit = terms.DeviceLimit
	p.price = terms.Price
	p.updatedAt = now
	return nil
}

func (p *Plan) Deactivate(now time.Time) {
	p.isActive = false
	p.updatedAt = now
}

func (p *Plan) Activate(now time.Time) {
	p.isActive = true
	p.updatedAt = now
}

// Entitlement converts the plan terms into what a successful payment grants.
func (p *Plan) Entitlement(stack bool) subscriber.Entitlement {
	return subscriber.Entitlement{
		Days:           p.durationDays,
		TrafficLimitGB: p.trafficLimitGB,
		DeviceLimit:    p.deviceLimit,
		Source:         subvo.SourcePaid,
		Stack:          stack,
	}
}

func (p *Plan) ID() uint                { return p.id }
func (p *Plan) Name() string            { return p.name }
func (p *Plan) DurationDays() int       { return p.durationDays }
func (p *Plan) TrafficLimitGB() float64 { return p.trafficLimitGB }
func (p *Plan) DeviceLimit() int        { return p.deviceLimit }
func (p *Plan) Price() vo.Money         { return p.price }
func (p *Plan) IsActive() bool          { return p.isActive }
func (p *Plan) SortOrder() int          { return p.sortOrder }
func (p *Plan) CreatedAt() time.Time    { return p.createdAt }
func (p *Plan) UpdatedAt() time.Time    { return p.updatedAt }

func (p *Plan) SetID(id uint) { p.id = id }

func ReconstructPlan(id uint, terms Terms, isActive bool, sortOrder int, createdAt, updatedAt time.Time) *Plan {
	return &Plan{
		id:             id,
		name:           terms.Name,
		durationDays:   terms.DurationDays,
		trafficLimitGB: terms.TrafficLimitGB,
		deviceLimit:    terms.DeviceLimit,
		price:          terms.Price,
		isActive:       isActive,
		sortOrder:      sortOrder,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}
