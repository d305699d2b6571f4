package mappers

import (
	"fmt"

	"github.com/relaygate/relaygate/internal/domain/payment"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/models"
)

func PaymentToModel(p *payment.Payment) *models.PaymentModel {
	model := &models.PaymentModel{
		ID:                p.ID(),
		ProviderPaymentID: p.ProviderPaymentID(),
		Provider:          p.Provider(),
		SubscriberID:      p.SubscriberID(),
		PlanID:            p.PlanID(),
		Amount:            p.Amount().AmountMinor(),
		Currency:          p.Amount().Currency(),
		Description:       p.Description(),
		Status:            p.Status().String(),
		ConfirmationURL:   p.ConfirmationURL(),
		CompletedAt:       p.CompletedAt(),
		Version:           p.Version(),
		CreatedAt:         p.CreatedAt(),
		UpdatedAt:         p.UpdatedAt(),
	}

	if len(p.Metadata()) > 0 {
		model.Metadata = p.Metadata()
	}
	// NULL keeps unsettled payments out of the unique index
	if ref := p.TxRef(); ref != "" {
		model.TxRef = &ref
	}

	return model
}

func PaymentToDomain(model *models.PaymentModel) (*payment.Payment, error) {
	status := vo.PaymentStatus(model.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid payment status: %s", model.Status)
	}

	var txRef string
	if model.TxRef != nil {
		txRef = *model.TxRef
	}

	return payment.ReconstructPayment(payment.ReconstructParams{
		ID:                model.ID,
		ProviderPaymentID: model.ProviderPaymentID,
		Provider:          model.Provider,
		SubscriberID:      model.SubscriberID,
		PlanID:            model.PlanID,
		Amount:            vo.NewMoney(model.Amount, model.Currency),
		Description:       model.Description,
		Status:            status,
		ConfirmationURL:   model.ConfirmationURL,
		Metadata:          model.Metadata,
		TxRef:             txRef,
		CompletedAt:       model.CompletedAt,
		Version:           model.Version,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}), nil
}
