// Package onboarding implements the onboarding step engine: the step catalog,
// progress calculation, transition rules, step-instance correlation, the
// state machine and the dynamic component builder.
//
// Everything in this package is synchronous and side-effect free. State is
// passed in by value and a new value is returned; persistence, detection
// signal fetching and answer logging belong to the caller.
package onboarding

// StepID identifies one step of the onboarding flow.
type StepID string

const (
	StepPrivacyConsent      StepID = "privacy_consent"
	StepWelcome             StepID = "welcome"
	StepMainGoal            StepID = "main_goal"
	StepLifeStage           StepID = "life_stage"
	StepDependents          StepID = "dependents"
	StepJurisdiction        StepID = "jurisdiction"
	StepAccountLinking      StepID = "account_linking"
	StepIncomeCapture       StepID = "income_capture"
	StepPayStructure        StepID = "pay_structure"
	StepMonthlyExpenses     StepID = "monthly_expenses"
	StepBudgetReview        StepID = "budget_review"
	StepAssetsLiabilities   StepID = "assets_liabilities_quick_add"
	StepDebtsDetail         StepID = "debts_detail"
	StepEmergencyFund       StepID = "emergency_fund"
	StepRiskTolerance       StepID = "risk_tolerance"
	StepInvestingExperience StepID = "investing_experience"
	StepGoalsSelection      StepID = "goals_selection"
	StepGoalsTimeline       StepID = "goals_timeline"
	StepNotificationsOptIn  StepID = "notifications_opt_in"
	StepWrapUp              StepID = "wrap_up"
)

func (id StepID) String() string {
	return string(id)
}

// ComponentKind is the interaction component a step is rendered with.
type ComponentKind string

const (
	ComponentButtons      ComponentKind = "buttons"
	ComponentForm         ComponentKind = "form"
	ComponentCheckboxes   ComponentKind = "checkboxes"
	ComponentCards        ComponentKind = "cards"
	ComponentExternalLink ComponentKind = "external-link-flow"
	ComponentPieChart     ComponentKind = "pie-chart"
	ComponentSlider       ComponentKind = "slider"
	ComponentDropdown     ComponentKind = "dropdown"
)

// IsValid reports whether k is one of the known component kinds.
func (k ComponentKind) IsValid() bool {
	switch k {
	case ComponentButtons, ComponentForm, ComponentCheckboxes, ComponentCards,
		ComponentExternalLink, ComponentPieChart, ComponentSlider, ComponentDropdown:
		return true
	default:
		return false
	}
}

// SkipRule names the context condition under which a skip-allowed step is
// considered redundant and bypassed by the skip resolver.
type SkipRule string

const (
	// SkipNever keeps the step even when skipping is allowed. Clients may
	// still be routed past it by an explicit transition.
	SkipNever SkipRule = ""
	// SkipWhenAccountsLinked bypasses the step when an external account
	// connection is active, since the data will be detected automatically.
	SkipWhenAccountsLinked SkipRule = "accounts_linked"
)

func (r SkipRule) isValid() bool {
	return r == SkipNever || r == SkipWhenAccountsLinked
}
