package confidence

import (
	"regexp"

	"github.com/autofin/autofin/pkg/models"
)

const (
	codePatternWeight      = 0.15
	completionPhraseWeight = 0.2
)

// taskTypePatterns matches code shapes expected in a finished response for
// each task type.
var taskTypePatterns = map[models.TaskType][]*regexp.Regexp{
	models.TaskTypeFeature: {
		regexp.MustCompile(`func \w+\(`),
		regexp.MustCompile(`type \w+ (struct|interface)`),
	},
	models.TaskTypeBugfix: {
		regexp.MustCompile(`if err != nil`),
		regexp.MustCompile(`(?i)before:.*after:`),
	},
	models.TaskTypeRefactor: {
		regexp.MustCompile(`func \w+\(`),
	},
	models.TaskTypeTest: {
		regexp.MustCompile(`func Test\w+\(t \*testing\.T\)`),
		regexp.MustCompile(`(?i)\d+ passed`),
	},
	models.TaskTypeDocs: {
		regexp.MustCompile(`(?m)^#{1,3} `),
	},
	models.TaskTypeDeployment: {
		regexp.MustCompile(`(?i)(kubectl|terraform|docker) `),
	},
	models.TaskTypeAnalysis: {
		regexp.MustCompile(`(?m)^[-*] `),
	},
	models.TaskTypeSecurity: {
		regexp.MustCompile(`(?i)cve-\d{4}-\d+`),
	},
}

// completionPhrases are end-of-response sign-off patterns. Each match adds
// completionPhraseWeight.
var completionPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bdone\.?\s*$`),
	regexp.MustCompile(`(?i)\bcomplete\.?\s*$`),
	regexp.MustCompile(`(?i)\btask (is )?completed?\.?\s*$`),
	regexp.MustCompile(`(?i)\ball tests pass(ing)?\.?\s*$`),
	regexp.MustCompile(`(?i)\bready for review\.?\s*$`),
	regexp.MustCompile(`(?i)\bfinished\.?\s*$`),
}

// PatternStrategy matches structural code patterns and completion sign-off
// phrases in the response.
type PatternStrategy struct{}

func NewPatternStrategy() *PatternStrategy { return &PatternStrategy{} }

func (s *PatternStrategy) Name() string { return StrategyPattern }

func (s *PatternStrategy) Evaluate(input Input) Result {
	var score float64

	codeMatches := 0

	for _, re := range taskTypePatterns[input.TaskType] {
		if re.MatchString(input.Response) {
			score += codePatternWeight
			codeMatches++
		}
	}

	phraseMatches := 0

	for _, re := range completionPhrases {
		if re.MatchString(input.Response) {
			score += completionPhraseWeight
			phraseMatches++
		}
	}

	return Result{
		Strategy:   s.Name(),
		Score:      score,
		Confidence: clamp(score),
		Details: map[string]any{
			"code_pattern_matches":      codeMatches,
			"completion_phrase_matches": phraseMatches,
		},
	}
}

func init() {
	RegisterStrategy(StrategyPattern, func() Strategy { return NewPatternStrategy() })
}
