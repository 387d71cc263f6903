// Package confidence scores raw AI response text against a task and combines
// independent scoring strategies into one composite completion analysis.
package confidence

import (
	"fmt"
	"sort"

	"github.com/autofin/autofin/pkg/models"
)

// Input is everything a strategy may look at: the raw response text plus the
// task and confirmation context gathered by earlier pipeline stages.
type Input struct {
	Response           string
	TaskType           models.TaskType
	QualityScore       *float64 // externally assessed, nil when the quality stage failed
	Confirmed          bool
	ConfirmationMethod string
	RequiresUserInput  bool
}

// Result is one strategy's verdict. Score is the raw weighted sum and may
// exceed [0,1]; Confidence is always clamped into [0,1].
type Result struct {
	Strategy   string         `json:"strategy"`
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details,omitempty"`
}

// Strategy maps an Input to a Result. Implementations are pure: same input,
// same output, no side effects.
type Strategy interface {
	Name() string
	Evaluate(input Input) Result
}

// Strategy names.
const (
	StrategyKeyword = "keyword"
	StrategyQuality = "quality"
	StrategyContext = "context"
	StrategyPattern = "pattern"
)

var builtinStrategies = map[string]func() Strategy{}

// RegisterStrategy makes a strategy constructor available by name. Built-in
// strategies register themselves; external packages may add more before
// building a detector.
func RegisterStrategy(name string, factory func() Strategy) {
	builtinStrategies[name] = factory
}

// NewStrategy constructs a registered strategy by name.
func NewStrategy(name string) (Strategy, error) {
	factory, ok := builtinStrategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown confidence strategy: %q", name)
	}

	return factory(), nil
}

// StrategyNames lists registered strategies in stable order.
func StrategyNames() []string {
	names := make([]string, 0, len(builtinStrategies))
	for name := range builtinStrategies {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// clamp bounds v to [0,1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
