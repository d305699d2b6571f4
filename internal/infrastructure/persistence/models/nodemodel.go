package models

import "time"

type NodeModel struct {
	ID            uint   `gorm:"primaryKey"`
	NodeID        string `gorm:"uniqueIndex;size:64;not null"`
	Name          string `gorm:"size:100;not null"`
	Endpoint      string `gorm:"size:255;not null"`
	Username      string `gorm:"size:100"`
	Password      string `gorm:"size:255"`
	IsActive      bool   `gorm:"not null;index"`
	Capacity      int    `gorm:"not null;default:0"`
	LastLoad      int    `gorm:"not null;default:0"`
	LastCheckedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (NodeModel) TableName() string {
	return "nodes"
}
