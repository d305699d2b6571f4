package models

import "time"

// OnchainSuffixModel reserves a unique raw transfer amount on a wallet for one
// open on-chain payment.
type OnchainSuffixModel struct {
	ID                uint      `gorm:"primaryKey"`
	Wallet            string    `gorm:"size:64;not null;uniqueIndex:uk_onchain_suffix_wallet_amount;index:idx_onchain_suffix_wallet_base"`
	BaseAmountRaw     string    `gorm:"column:base_amount_raw;size:80;not null;index:idx_onchain_suffix_wallet_base"`
	Suffix            uint      `gorm:"not null"`
	FullAmountRaw     string    `gorm:"column:full_amount_raw;size:80;not null;uniqueIndex:uk_onchain_suffix_wallet_amount"`
	ProviderPaymentID string    `gorm:"size:128;not null;uniqueIndex"`
	AllocatedAt       time.Time `gorm:"not null"`
	ExpiresAt         time.Time `gorm:"not null;index"`
	CreatedAt         time.Time
}

func (OnchainSuffixModel) TableName() string {
	return "onchain_amount_suffixes"
}
