package confidence

import (
	"strings"

	"github.com/autofin/autofin/pkg/models"
)

const (
	taskKeywordWeight       = 0.2
	completionKeywordWeight = 0.1
)

// taskTypeKeywords lists vocabulary that signals progress on a given kind of
// task. Each keyword found in the response adds taskKeywordWeight.
var taskTypeKeywords = map[models.TaskType][]string{
	models.TaskTypeFeature:    {"implemented", "added", "created", "integrated"},
	models.TaskTypeBugfix:     {"fixed", "resolved", "patched", "root cause"},
	models.TaskTypeRefactor:   {"refactored", "extracted", "simplified", "restructured"},
	models.TaskTypeTest:       {"tested", "passing", "coverage", "assertions"},
	models.TaskTypeDocs:       {"documented", "readme", "examples", "described"},
	models.TaskTypeDeployment: {"deployed", "released", "rolled out", "provisioned"},
	models.TaskTypeAnalysis:   {"analyzed", "findings", "measured", "profiled"},
	models.TaskTypeSecurity:   {"hardened", "sanitized", "vulnerability", "audited"},
}

// completionKeywords are generic done-words worth completionKeywordWeight
// each, independent of task type.
var completionKeywords = []string{
	"done", "complete", "completed", "finished", "ready", "successfully", "works as expected",
}

// KeywordStrategy counts task-type-specific and generic completion vocabulary
// in the response text.
type KeywordStrategy struct{}

func NewKeywordStrategy() *KeywordStrategy { return &KeywordStrategy{} }

func (s *KeywordStrategy) Name() string { return StrategyKeyword }

func (s *KeywordStrategy) Evaluate(input Input) Result {
	text := strings.ToLower(input.Response)

	var score float64

	matched := []string{}

	for _, kw := range taskTypeKeywords[input.TaskType] {
		if strings.Contains(text, kw) {
			score += taskKeywordWeight

			matched = append(matched, kw)
		}
	}

	for _, kw := range completionKeywords {
		if strings.Contains(text, kw) {
			score += completionKeywordWeight

			matched = append(matched, kw)
		}
	}

	return Result{
		Strategy:   s.Name(),
		Score:      score,
		Confidence: clamp(score),
		Details: map[string]any{
			"matched_keywords": matched,
			"task_type":        string(input.TaskType),
		},
	}
}

func init() {
	RegisterStrategy(StrategyKeyword, func() Strategy { return NewKeywordStrategy() })
}
