package models

import "time"

type PlanModel struct {
	ID             uint    `gorm:"primaryKey"`
	Name           string  `gorm:"size:100;not null"`
	DurationDays   int     `gorm:"not null"`
	TrafficLimitGB float64 `gorm:"column:traffic_limit_gb;not null;default:0"`
	DeviceLimit    int     `gorm:"not null;default:0"`
	Price          int64   `gorm:"not null"`
	Currency       string  `gorm:"size:10;not null"`
	IsActive       bool    `gorm:"not null;index"`
	SortOrder      int     `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (PlanModel) TableName() string {
	return "plans"
}
