package models

import "time"

type SubscriberModel struct {
	ID                  uint   `gorm:"primaryKey"`
	ExternalID          int64  `gorm:"uniqueIndex;not null"`
	Username            string `gorm:"size:64"`
	Role                string `gorm:"size:20;not null;index"`
	ExpiresAt           *time.Time
	TrafficLimitGB      float64 `gorm:"column:traffic_limit_gb;not null;default:0"`
	UsedTrafficGB       float64 `gorm:"column:used_traffic_gb;not null;default:0"`
	DeviceLimit         int     `gorm:"not null"`
	AssignedNode        string  `gorm:"size:64;index"`
	Source              string  `gorm:"size:20;not null"`
	ProvisioningPending bool    `gorm:"not null;default:false;index"`
	ProvisioningError   string  `gorm:"size:500"`
	Version             int     `gorm:"not null"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (SubscriberModel) TableName() string {
	return "subscribers"
}
