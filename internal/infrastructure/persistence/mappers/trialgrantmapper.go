package mappers

import (
	"github.com/relaygate/relaygate/internal/domain/trial"
	"github.com/relaygate/relaygate/internal/infrastructure/persistence/models"
)

func TrialGrantToModel(g *trial.Grant) *models.TrialGrantModel {
	m := &models.TrialGrantModel{
		ID:           g.ID(),
		SubscriberID: g.SubscriberID(),
		DurationDays: g.DurationDays(),
		TrafficGB:    g.TrafficGB(),
		StartedAt:    g.StartedAt(),
		ExpiresAt:    g.ExpiresAt(),
		Active:       g.Active(),
		CreatedAt:    g.StartedAt(),
	}
	if g.Active() {
		id := g.SubscriberID()
		m.ActiveSubscriberID = &id
	}
	return m
}

func TrialGrantToDomain(m *models.TrialGrantModel) *trial.Grant {
	return trial.ReconstructGrant(m.ID, m.SubscriberID, m.DurationDays, m.TrafficGB, m.StartedAt, m.ExpiresAt, m.Active)
}
