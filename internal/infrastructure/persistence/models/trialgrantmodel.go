package models

import "time"

// TrialGrantModel keeps ActiveSubscriberID set only while the grant is active, so the
// unique index allows any number of ended grants but one active grant per subscriber.
type TrialGrantModel struct {
	ID                 uint    `gorm:"primaryKey"`
	SubscriberID       uint    `gorm:"index;not null"`
	ActiveSubscriberID *uint   `gorm:"uniqueIndex"`
	DurationDays       int     `gorm:"not null"`
	TrafficGB          float64 `gorm:"column:traffic_gb;not null;default:0"`
	StartedAt          time.Time
	ExpiresAt          time.Time `gorm:"index"`
	Active             bool      `gorm:"not null"`
	CreatedAt          time.Time
}

func (TrialGrantModel) TableName() string {
	return "trial_grants"
}
