package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/relaygate/relaygate/internal/domain/payment"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/domain/shared"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/mappers"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/models"
	"github.com/relaygate/relaygate/internal/shared/db"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create relies on the unique provider_payment_id index; a collision is ErrDuplicatePayment.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	model := mappers.PaymentToModel(p)
	model.Version = 1

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return payment.ErrDuplicatePayment
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	// Write back the auto-generated ID to the domain object
	p.SetID(model.ID)
	p.SetVersion(model.Version)

	return nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	model := mappers.PaymentToModel(p)

	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]interface{}{
			"status":           model.Status,
			"confirmation_url": model.ConfirmationURL,
			"metadata":         model.Metadata,
			"tx_ref":           model.TxRef,
			"completed_at":     model.CompletedAt,
			"version":          model.Version + 1,
			"updated_at":       model.UpdatedAt,
		})

	if result.Error != nil {
		if apperrors.IsDuplicateError(result.Error) {
			return payment.ErrTxRefInUse
		}
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrentModification
	}

	p.SetVersion(model.Version + 1)
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uint) (*payment.Payment, error) {
	var model models.PaymentModel

	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return mappers.PaymentToDomain(&model)
}

func (r *PaymentRepository) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*payment.Payment, error) {
	var model models.PaymentModel

	if err := db.GetTxFromContext(ctx, r.db).
		Where("provider_payment_id = ?", providerPaymentID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment by provider id: %w", err)
	}

	return mappers.PaymentToDomain(&model)
}

func (r *PaymentRepository) GetByTxRef(ctx context.Context, txRef string) (*payment.Payment, error) {
	var model models.PaymentModel

	if err := db.GetTxFromContext(ctx, r.db).
		Where("tx_ref = ?", txRef).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment by tx ref: %w", err)
	}

	return mappers.PaymentToDomain(&model)
}

func (r *PaymentRepository) ListOpenCreatedBefore(ctx context.Context, t time.Time, limit int) ([]*payment.Payment, error) {
	var paymentModels []models.PaymentModel

	if err := db.GetTxFromContext(ctx, r.db).
		Scopes(db.CreatedBefore(t), db.Limit(limit)).
		Where("status IN ?", []string{vo.PaymentStatusPending.String(), vo.PaymentStatusProcessing.String()}).
		Order("created_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list open payments: %w", err)
	}

	payments := make([]*payment.Payment, len(paymentModels))
	for i := range paymentModels {
		p, err := mappers.PaymentToDomain(&paymentModels[i])
		if err != nil {
			return nil, err
		}
		payments[i] = p
	}

	return payments, nil
}

func (r *PaymentRepository) CountByPlanID(ctx context.Context, planID uint) (int64, error) {
	var count int64

	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.PaymentModel{}).
		Where("plan_id = ?", planID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count payments by plan: %w", err)
	}

	return count, nil
}
