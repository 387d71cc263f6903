package confidence

import (
	"regexp"
	"strings"

	"github.com/autofin/autofin/pkg/models"
)

const (
	assessedQualityWeight  = 0.4
	qualityIndicatorWeight = 0.15
	codeBlockWeight        = 0.2
	errorHandlingWeight    = 0.1
)

// fencedCodeBlock matches a complete triple-backtick block.
var fencedCodeBlock = regexp.MustCompile("(?s)```.+?```")

// qualityIndicators lists per-task-type phrases whose presence suggests the
// response addressed quality concerns for that kind of work.
var qualityIndicators = map[models.TaskType][]string{
	models.TaskTypeFeature:    {"unit test", "edge case"},
	models.TaskTypeBugfix:     {"regression", "reproduced"},
	models.TaskTypeRefactor:   {"behavior unchanged", "no functional change"},
	models.TaskTypeTest:       {"coverage", "table-driven"},
	models.TaskTypeDocs:       {"usage", "example"},
	models.TaskTypeDeployment: {"rollback", "health check"},
	models.TaskTypeAnalysis:   {"methodology", "data"},
	models.TaskTypeSecurity:   {"least privilege", "input validation"},
}

// errorHandlingVocabulary signals the response thought about failure paths.
var errorHandlingVocabulary = []string{
	"error handling", "edge case", "if err", "try/catch", "fallback", "graceful",
}

// QualityStrategy folds an externally assessed quality score together with
// structural signals from the response itself.
type QualityStrategy struct{}

func NewQualityStrategy() *QualityStrategy { return &QualityStrategy{} }

func (s *QualityStrategy) Name() string { return StrategyQuality }

func (s *QualityStrategy) Evaluate(input Input) Result {
	text := strings.ToLower(input.Response)

	var score float64

	details := map[string]any{}

	if input.QualityScore != nil {
		score += *input.QualityScore * assessedQualityWeight
		details["assessed_score"] = *input.QualityScore
	}

	indicators := []string{}

	for _, phrase := range qualityIndicators[input.TaskType] {
		if strings.Contains(text, phrase) {
			score += qualityIndicatorWeight

			indicators = append(indicators, phrase)
		}
	}

	details["indicators"] = indicators

	if fencedCodeBlock.MatchString(input.Response) {
		score += codeBlockWeight
		details["has_code_block"] = true
	}

	for _, phrase := range errorHandlingVocabulary {
		if strings.Contains(text, phrase) {
			score += errorHandlingWeight
			details["error_handling"] = phrase

			break
		}
	}

	return Result{
		Strategy:   s.Name(),
		Score:      score,
		Confidence: clamp(score),
		Details:    details,
	}
}

func init() {
	RegisterStrategy(StrategyQuality, func() Strategy { return NewQualityStrategy() })
}
