package confidence

import (
	"fmt"
	"math"
)

// Classification buckets a composite confidence value.
type Classification string

const (
	ClassificationHigh       Classification = "high_confidence"
	ClassificationMedium     Classification = "medium_confidence"
	ClassificationLow        Classification = "low_confidence"
	ClassificationIncomplete Classification = "incomplete"
)

// Classification boundaries, inclusive.
const (
	highConfidenceThreshold   = 0.8
	mediumConfidenceThreshold = 0.6
	lowConfidenceThreshold    = 0.4
)

const weightSumTolerance = 1e-9

// DefaultWeights is the canonical strategy weighting. The values must sum to
// 1.0; NewDetector enforces that.
var DefaultWeights = map[string]float64{
	StrategyKeyword: 0.25,
	StrategyQuality: 0.30,
	StrategyContext: 0.25,
	StrategyPattern: 0.20,
}

// AnalysisMetadata surfaces the individual strategy confidences alongside the
// composite for observability.
type AnalysisMetadata struct {
	QualityScore   float64 `json:"quality_score"`
	ContextScore   float64 `json:"context_score"`
	PatternScore   float64 `json:"pattern_score"`
	CompositeScore float64 `json:"composite_score"`
}

// Analysis is the detector's verdict for one (task, response) pair. It is
// immutable once produced; a new response requires a new analysis.
//
// Whether the task counts as complete is deliberately not decided here: the
// orchestrator compares Confidence against its own threshold, so different
// callers can apply different completion bars without recomputing strategies.
type Analysis struct {
	Confidence     float64          `json:"confidence"`
	Classification Classification   `json:"classification"`
	Strategies     []Result         `json:"strategies"`
	Metadata       AnalysisMetadata `json:"metadata"`
}

// Detector combines strategy confidences into one weighted composite.
type Detector struct {
	strategies []Strategy
	weights    map[string]float64
}

// NewDetector builds a detector over the given strategies. The weight table
// must sum to 1.0 and cover every configured strategy; both are construction
// errors, not runtime checks. The strategies may be a subset of the table:
// Analyze renormalizes over the strategies actually present.
func NewDetector(strategies []Strategy, weights map[string]float64) (*Detector, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("detector requires at least one strategy")
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}

	if math.Abs(sum-1.0) > weightSumTolerance {
		return nil, fmt.Errorf("strategy weights must sum to 1.0, got %v", sum)
	}

	for _, strategy := range strategies {
		if _, ok := weights[strategy.Name()]; !ok {
			return nil, fmt.Errorf("no weight configured for strategy %q", strategy.Name())
		}
	}

	return &Detector{strategies: strategies, weights: weights}, nil
}

// NewDefaultDetector builds a detector with all four built-in strategies and
// the default weights.
func NewDefaultDetector() (*Detector, error) {
	strategies := make([]Strategy, 0, len(DefaultWeights))

	for _, name := range []string{StrategyKeyword, StrategyQuality, StrategyContext, StrategyPattern} {
		strategy, err := NewStrategy(name)
		if err != nil {
			return nil, err
		}

		strategies = append(strategies, strategy)
	}

	return NewDetector(strategies, DefaultWeights)
}

// Analyze runs every strategy over the input and folds the confidences into
// a weighted average. Weights are renormalized over the strategies actually
// present, so a detector built with a subset still produces a [0,1]
// composite.
func (d *Detector) Analyze(input Input) Analysis {
	results := make([]Result, 0, len(d.strategies))

	var weighted, totalWeight float64

	for _, strategy := range d.strategies {
		result := strategy.Evaluate(input)
		results = append(results, result)

		w := d.weights[strategy.Name()]
		weighted += result.Confidence * w
		totalWeight += w
	}

	composite := 0.0
	if totalWeight > 0 {
		composite = weighted / totalWeight
	}

	metadata := AnalysisMetadata{CompositeScore: composite}

	for _, result := range results {
		switch result.Strategy {
		case StrategyQuality:
			metadata.QualityScore = result.Confidence
		case StrategyContext:
			metadata.ContextScore = result.Confidence
		case StrategyPattern:
			metadata.PatternScore = result.Confidence
		}
	}

	return Analysis{
		Confidence:     composite,
		Classification: Classify(composite),
		Strategies:     results,
		Metadata:       metadata,
	}
}

// Classify maps a composite confidence to its bucket. Boundaries are
// inclusive: exactly 0.8 is high, exactly 0.6 is medium, exactly 0.4 is low.
func Classify(confidence float64) Classification {
	switch {
	case confidence >= highConfidenceThreshold:
		return ClassificationHigh
	case confidence >= mediumConfidenceThreshold:
		return ClassificationMedium
	case confidence >= lowConfidenceThreshold:
		return ClassificationLow
	default:
		return ClassificationIncomplete
	}
}
