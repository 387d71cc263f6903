package models

import "fmt"

// AutomationLevel governs how much of a task's completion loop runs without a
// human in it.
type AutomationLevel string

const (
	AutomationManual   AutomationLevel = "manual"    // Every step confirmed by a human
	AutomationAssisted AutomationLevel = "assisted"  // Human reviews, automation suggests
	AutomationSemiAuto AutomationLevel = "semi_auto" // Automation drives, human confirms completion
	AutomationFullAuto AutomationLevel = "full_auto" // No human in the loop
)

// ParseAutomationLevel converts a string into an AutomationLevel, rejecting
// unknown values.
func ParseAutomationLevel(s string) (AutomationLevel, error) {
	switch AutomationLevel(s) {
	case AutomationManual, AutomationAssisted, AutomationSemiAuto, AutomationFullAuto:
		return AutomationLevel(s), nil
	default:
		return "", fmt.Errorf("unknown automation level: %q", s)
	}
}

// LevelPolicy describes what a given automation level implies for the
// completion loop. The table is static; derived queries on the decision
// engine map the cascade result through it.
type LevelPolicy struct {
	RequiresConfirmation bool
	RequiresHumanReview  bool
	FullyAutomated       bool
	ConfidenceThreshold  float64
}

var levelPolicies = map[AutomationLevel]LevelPolicy{
	AutomationManual:   {RequiresConfirmation: true, RequiresHumanReview: true, FullyAutomated: false, ConfidenceThreshold: 0.95},
	AutomationAssisted: {RequiresConfirmation: true, RequiresHumanReview: true, FullyAutomated: false, ConfidenceThreshold: 0.85},
	AutomationSemiAuto: {RequiresConfirmation: true, RequiresHumanReview: false, FullyAutomated: false, ConfidenceThreshold: 0.7},
	AutomationFullAuto: {RequiresConfirmation: false, RequiresHumanReview: false, FullyAutomated: true, ConfidenceThreshold: 0.6},
}

// PolicyFor returns the policy for a level. Unknown levels get the manual
// policy, the most conservative one.
func PolicyFor(level AutomationLevel) LevelPolicy {
	if p, ok := levelPolicies[level]; ok {
		return p
	}

	return levelPolicies[AutomationManual]
}
