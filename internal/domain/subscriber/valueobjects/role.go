package valueobjects

type Role string

const (
	RoleAdmin         Role = "ADMIN"
	RoleActive        Role = "ACTIVE"
	RoleTrialEligible Role = "TRIAL_ELIGIBLE"
	RoleBanned        Role = "BANNED"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleActive, RoleTrialEligible, RoleBanned:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Source records what funded the current entitlement.
type Source string

const (
	SourcePaid   Source = "paid"
	SourcePromo  Source = "promo"
	SourceManual Source = "manual"
	SourceTrial  Source = "trial"
)

func (s Source) IsValid() bool {
	switch s {
	case SourcePaid, SourcePromo, SourceManual, SourceTrial:
		return true
	}
	return false
}

func (s Source) String() string {
	return string(s)
}
