package agent

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/polyrag/polyrag/pkg/models"
)

// minResponseLength is the trimmed-character floor below which a
// response is flagged as too short.
const minResponseLength = 10

// sourceOverlapThreshold is the minimum fraction of response tokens that
// must appear in the source documents.
const sourceOverlapThreshold = 0.3

// summarizeLength is the response length above which a summarize
// suggestion is added, independent of any issue.
const summarizeLength = 1000

// inabilityPhrases flag responses that admit they cannot answer.
var inabilityPhrases = []string{"i don't know", "unable to", "cannot determine"}

// Validation checks answer quality and source support. It has no
// collaborators; both checks are local heuristics.
type Validation struct {
	tracker
}

// NewValidation creates the validation stage.
func NewValidation() *Validation {
	return &Validation{tracker: newTracker(string(models.StageValidation))}
}

// Process runs the quality and citation-support checks and derives
// suggestions and confidence from the issue codes that fired.
func (s *Validation) Process(ctx context.Context, msg models.Message) (models.ValidationResult, error) {
	s.begin("validating_response")
	start := time.Now()

	in, err := content[models.ValidationInput](msg, models.StageValidation)
	if err != nil {
		s.fail()
		return models.ValidationResult{}, err
	}

	issues := checkQuality(in.Response)
	issues = append(issues, checkCitationSupport(in.Response, in.Documents)...)

	result := models.ValidationResult{
		IsValid:     len(issues) == 0,
		Confidence:  validationConfidence(len(issues)),
		Issues:      issues,
		Suggestions: suggestions(issues, in.Response),
		ElapsedMS:   elapsedMS(start),
	}

	s.done()
	log.Info().
		Bool("is_valid", result.IsValid).
		Strs("issues", issues).
		Msg("response validated")

	return result, nil
}

// checkQuality flags responses that are too short or admit inability.
func checkQuality(response string) []string {
	var issues []string
	if len(strings.TrimSpace(response)) < minResponseLength {
		issues = append(issues, models.IssueResponseTooShort)
	}
	lower := strings.ToLower(response)
	for _, phrase := range inabilityPhrases {
		if strings.Contains(lower, phrase) {
			issues = append(issues, models.IssueResponseIndicatesInability)
			break
		}
	}
	return issues
}

// checkCitationSupport measures how much of the response's vocabulary
// appears in the source documents. No documents short-circuits the check.
func checkCitationSupport(response string, docs []models.Document) []string {
	if len(docs) == 0 {
		return []string{models.IssueNoSourceDocuments}
	}

	contents := make([]string, len(docs))
	for i, doc := range docs {
		contents[i] = doc.Content
	}
	if tokenOverlap(response, strings.Join(contents, " ")) < sourceOverlapThreshold {
		return []string{models.IssueInsufficientSourceOverlap}
	}
	return nil
}

// tokenOverlap is |tokens(response) ∩ tokens(source)| / |tokens(response)|
// with whitespace tokenization and lowercasing. A response with no tokens
// has zero overlap.
func tokenOverlap(response, source string) float64 {
	responseTokens := tokenSet(response)
	if len(responseTokens) == 0 {
		return 0
	}
	sourceTokens := tokenSet(source)

	shared := 0
	for tok := range responseTokens {
		if sourceTokens[tok] {
			shared++
		}
	}
	return float64(shared) / float64(len(responseTokens))
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[tok] = true
	}
	return set
}

// suggestions derives improvement hints from the issue codes that fired,
// plus a length hint for very long responses.
func suggestions(issues []string, response string) []string {
	var out []string
	for _, issue := range issues {
		switch issue {
		case models.IssueResponseTooShort:
			out = append(out, "Consider providing more detailed information")
		case models.IssueInsufficientSourceOverlap:
			out = append(out, "Review source documents to ensure accuracy")
		}
	}
	if len(response) > summarizeLength {
		out = append(out, "Consider summarizing the response for clarity")
	}
	return out
}

// validationConfidence is clamp(1 − 0.1·issues, 0, 1).
func validationConfidence(issueCount int) float64 {
	c := 1.0 - 0.1*float64(issueCount)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
