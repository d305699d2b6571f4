package models

// All lists every model, for dev auto-migration.
func All() []interface{} {
	return []interface{}{
		&SubscriberModel{},
		&PlanModel{},
		&PaymentModel{},
		&TrialGrantModel{},
		&NodeModel{},
		&OnchainSuffixModel{},
	}
}
