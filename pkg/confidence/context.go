package confidence

const (
	confirmedBonus       = 0.3
	autoQualityBonus     = 0.2
	userInputPenalty     = 0.2
	goodLengthBonus      = 0.1
	shortResponsePenalty = 0.2

	minGoodLength = 200
	maxGoodLength = 3000
	shortLength   = 50
)

// ConfirmationMethodAutoQuality marks a task that was confirmed automatically
// because its quality assessment cleared the bar, rather than by a human.
const ConfirmationMethodAutoQuality = "auto_quality"

// ContextStrategy scores the confirmation context around the response rather
// than its content: explicit confirmation, how the confirmation happened and
// whether the response looks substantial enough to be an actual answer.
type ContextStrategy struct{}

func NewContextStrategy() *ContextStrategy { return &ContextStrategy{} }

func (s *ContextStrategy) Name() string { return StrategyContext }

func (s *ContextStrategy) Evaluate(input Input) Result {
	var score float64

	details := map[string]any{}

	if input.Confirmed {
		score += confirmedBonus
		details["confirmed"] = true
	}

	if input.ConfirmationMethod == ConfirmationMethodAutoQuality {
		score += autoQualityBonus
		details["confirmation_method"] = input.ConfirmationMethod
	}

	if input.RequiresUserInput {
		score -= userInputPenalty
		details["requires_user_input"] = true
	}

	length := len(input.Response)
	details["response_length"] = length

	switch {
	case length >= minGoodLength && length <= maxGoodLength:
		score += goodLengthBonus
	case length < shortLength:
		score -= shortResponsePenalty
	}

	// Unlike the accumulating strategies, the score here can go negative, so
	// the confidence is clamped on both ends.
	return Result{
		Strategy:   s.Name(),
		Score:      score,
		Confidence: clamp(score),
		Details:    details,
	}
}

func init() {
	RegisterStrategy(StrategyContext, func() Strategy { return NewContextStrategy() })
}
