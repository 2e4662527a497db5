package onboarding

// DefaultSteps returns the production step definitions in flow order.
func DefaultSteps() []StepDefinition {
	return []StepDefinition{
		{
			ID:        StepPrivacyConsent,
			Label:     "Privacy & consent",
			Prompt:    "Before we start, please review how we use your financial data.",
			Component: ComponentButtons,
			Options: []Option{
				{ID: "accept", Label: "I agree", Primary: true, Value: "accepted"},
				{ID: "review", Label: "Read the privacy policy", Value: "review"},
			},
		},
		{
			ID:               StepWelcome,
			Label:            "Welcome",
			Prompt:           "Let's set up your financial profile. It takes about five minutes.",
			Component:        ComponentButtons,
			RequiresPrevious: []StepID{StepPrivacyConsent},
			Options: []Option{
				{ID: "start", Label: "Let's go", Primary: true, Value: "start"},
			},
		},
		{
			ID:               StepMainGoal,
			Label:            "Main goal",
			Prompt:           "What is the most important thing you want to achieve?",
			Component:        ComponentCards,
			RequiresPrevious: []StepID{StepWelcome},
			Options: []Option{
				{ID: "save_more", Label: "Save more", Description: "Build savings and an emergency cushion"},
				{ID: "pay_debt", Label: "Pay off debt", Description: "Get out of debt faster"},
				{ID: "invest", Label: "Start investing", Description: "Grow wealth over time"},
				{ID: "budget", Label: "Stick to a budget", Description: "Know where the money goes"},
				{ID: "big_purchase", Label: "Plan a big purchase", Description: "Home, car or education"},
			},
		},
		{
			ID:        StepLifeStage,
			Label:     "Life stage",
			Prompt:    "Which best describes where you are right now?",
			Component: ComponentButtons,
			Options: []Option{
				{ID: "student", Label: "Student", Value: "student"},
				{ID: "early_career", Label: "Early career", Value: "early_career"},
				{ID: "mid_career", Label: "Mid career", Value: "mid_career"},
				{ID: "family", Label: "Raising a family", Value: "family"},
				{ID: "pre_retirement", Label: "Approaching retirement", Value: "pre_retirement"},
				{ID: "retired", Label: "Retired", Value: "retired"},
			},
		},
		{
			ID:        StepDependents,
			Label:     "Dependents",
			Prompt:    "How many people depend on your income?",
			Component: ComponentDropdown,
			Options: []Option{
				{ID: "0", Label: "None", Value: "0"},
				{ID: "1", Label: "1", Value: "1"},
				{ID: "2", Label: "2", Value: "2"},
				{ID: "3", Label: "3", Value: "3"},
				{ID: "4_plus", Label: "4 or more", Value: "4+"},
			},
		},
		{
			ID:        StepJurisdiction,
			Label:     "Location",
			Prompt:    "Where do you live? This helps with tax-aware suggestions.",
			Component: ComponentForm,
			Fields: []Field{
				{Name: "country", Label: "Country", Type: "text", Required: true, Placeholder: "US"},
				{Name: "state", Label: "State / region", Type: "text", Placeholder: "CA"},
			},
		},
		{
			ID:               StepAccountLinking,
			Label:            "Link accounts",
			Prompt:           "Connect your bank so we can detect income and spending for you.",
			Component:        ComponentExternalLink,
			RequiresPrevious: []StepID{StepPrivacyConsent},
			Options: []Option{
				{ID: "link", Label: "Connect securely", Primary: true, Value: "link"},
				{ID: "later", Label: "Maybe later", Value: "later"},
			},
		},
		{
			ID:        StepIncomeCapture,
			Label:     "Income",
			Prompt:    "What is your monthly take-home income?",
			Component: ComponentButtons,
		},
		{
			ID:               StepPayStructure,
			Label:            "Pay structure",
			Prompt:           "How often do you get paid?",
			Component:        ComponentButtons,
			RequiresPrevious: []StepID{StepIncomeCapture},
			SkipAllowed:      true,
			Options: []Option{
				{ID: "weekly", Label: "Weekly", Value: "weekly"},
				{ID: "biweekly", Label: "Every two weeks", Value: "biweekly"},
				{ID: "semimonthly", Label: "Twice a month", Value: "semimonthly"},
				{ID: "monthly", Label: "Monthly", Value: "monthly"},
				{ID: "irregular", Label: "It varies", Value: "irregular"},
			},
		},
		{
			ID:               StepMonthlyExpenses,
			Label:            "Monthly expenses",
			Prompt:           "Here is how your spending breaks down. Adjust anything that looks off.",
			Component:        ComponentPieChart,
			RequiresPrevious: []StepID{StepIncomeCapture},
		},
		{
			ID:               StepBudgetReview,
			Label:            "Budget",
			Prompt:           "This is a starting budget based on what we know so far.",
			Component:        ComponentPieChart,
			RequiresPrevious: []StepID{StepMonthlyExpenses},
		},
		{
			ID:          StepAssetsLiabilities,
			Label:       "Assets & liabilities",
			Prompt:      "Quickly add what you own and what you owe.",
			Component:   ComponentForm,
			SkipAllowed: true,
			SkipWhen:    SkipWhenAccountsLinked,
			Fields: []Field{
				{Name: "cash", Label: "Cash & savings", Type: "currency"},
				{Name: "investments", Label: "Investments", Type: "currency"},
				{Name: "property", Label: "Property", Type: "currency"},
				{Name: "liabilities", Label: "Total owed", Type: "currency"},
			},
		},
		{
			ID:          StepDebtsDetail,
			Label:       "Debts",
			Prompt:      "Tell us about any debts you are paying off.",
			Component:   ComponentForm,
			SkipAllowed: true,
			SkipWhen:    SkipWhenAccountsLinked,
			Fields: []Field{
				{Name: "credit_cards", Label: "Credit cards", Type: "currency"},
				{Name: "student_loans", Label: "Student loans", Type: "currency"},
				{Name: "auto_loans", Label: "Auto loans", Type: "currency"},
				{Name: "mortgage", Label: "Mortgage", Type: "currency"},
			},
		},
		{
			ID:               StepEmergencyFund,
			Label:            "Emergency fund",
			Prompt:           "How many months of expenses would you like set aside?",
			Component:        ComponentSlider,
			RequiresPrevious: []StepID{StepIncomeCapture},
			Slider:           &SliderSpec{Min: 0, Max: 12, Step: 1, Default: 3, Unit: "months"},
		},
		{
			ID:        StepRiskTolerance,
			Label:     "Risk tolerance",
			Prompt:    "How comfortable are you with ups and downs in your investments?",
			Component: ComponentSlider,
			Slider:    &SliderSpec{Min: 1, Max: 10, Step: 1, Default: 5},
		},
		{
			ID:        StepInvestingExperience,
			Label:     "Investing experience",
			Prompt:    "How much investing experience do you have?",
			Component: ComponentButtons,
			Options: []Option{
				{ID: "none", Label: "None yet", Value: "none"},
				{ID: "some", Label: "Some", Value: "some"},
				{ID: "experienced", Label: "Experienced", Value: "experienced"},
			},
		},
		{
			ID:               StepGoalsSelection,
			Label:            "Goals",
			Prompt:           "Pick the goals you want to track.",
			Component:        ComponentCheckboxes,
			RequiresPrevious: []StepID{StepMainGoal},
			Options: []Option{
				{ID: "emergency_fund", Label: "Emergency fund"},
				{ID: "debt_free", Label: "Become debt free"},
				{ID: "retirement", Label: "Retirement"},
				{ID: "home", Label: "Buy a home"},
				{ID: "travel", Label: "Travel"},
				{ID: "education", Label: "Education"},
			},
		},
		{
			ID:               StepGoalsTimeline,
			Label:            "Timeline",
			Prompt:           "When would you like to reach your first goal?",
			Component:        ComponentSlider,
			RequiresPrevious: []StepID{StepGoalsSelection},
			Slider:           &SliderSpec{Min: 1, Max: 30, Step: 1, Default: 5, Unit: "years"},
		},
		{
			ID:          StepNotificationsOptIn,
			Label:       "Notifications",
			Prompt:      "What should we keep you posted about?",
			Component:   ComponentCheckboxes,
			SkipAllowed: true,
			Options: []Option{
				{ID: "weekly_summary", Label: "Weekly summary"},
				{ID: "bill_reminders", Label: "Bill reminders"},
				{ID: "goal_progress", Label: "Goal progress"},
			},
		},
		{
			ID:               StepWrapUp,
			Label:            "All set",
			Prompt:           "Your profile is ready. Here is a summary of what we collected.",
			Component:        ComponentButtons,
			RequiresPrevious: []StepID{StepPrivacyConsent},
			Options: []Option{
				{ID: "finish", Label: "Go to dashboard", Primary: true, Value: "finish"},
			},
		},
	}
}

// DefaultCatalog builds the production catalog. It panics on an invalid
// definition since that can only be a programming error.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultSteps())
	if err != nil {
		panic(err)
	}
	return c
}
