package models

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentModel struct {
	ID                uint   `gorm:"primaryKey"`
	ProviderPaymentID string `gorm:"uniqueIndex;size:128;not null"`
	Provider          string `gorm:"size:32;not null"`
	SubscriberID      uint   `gorm:"index;not null"`
	PlanID            *uint  `gorm:"index"`
	Amount            int64  `gorm:"not null"`
	Currency          string `gorm:"size:10;not null"`
	Description       string `gorm:"size:255"`
	Status            string `gorm:"size:20;not null;index"`
	ConfirmationURL   string `gorm:"type:text"`
	Metadata          datatypes.JSONMap
	TxRef             *string `gorm:"uniqueIndex;size:128"`
	CompletedAt       *time.Time
	Version           int `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (PaymentModel) TableName() string {
	return "payments"
}
