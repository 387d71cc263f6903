package automation

import (
	"context"

	"github.com/autofin/autofin/pkg/models"
)

// RuleEngine evaluates custom automation rules for a task. A false second
// return means no rule matched and the cascade should continue.
type RuleEngine interface {
	EvaluateRules(ctx context.Context, task models.Task, dctx DecisionContext) (models.AutomationLevel, bool, error)
}

// StaticRuleEngine evaluates an ordered rule list; the first matching enabled
// rule wins.
type StaticRuleEngine struct {
	rules []models.AutomationRule
}

func NewStaticRuleEngine(rules ...models.AutomationRule) *StaticRuleEngine {
	return &StaticRuleEngine{rules: rules}
}

func (e *StaticRuleEngine) EvaluateRules(_ context.Context, task models.Task, _ DecisionContext) (models.AutomationLevel, bool, error) {
	for _, rule := range e.rules {
		if rule.Matches(task) {
			return rule.Level, true, nil
		}
	}

	return "", false, nil
}
