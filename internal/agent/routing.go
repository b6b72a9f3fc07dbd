package agent

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/polyrag/polyrag/pkg/contracts"
	"github.com/polyrag/polyrag/pkg/models"
)

// queryTypeRules is the ordered, first-match keyword rule set used to
// classify query intent. Matching is a case-insensitive substring test
// against the whole query, so "Howard" matches the explanatory marker
// "how" — intentional, same trade-off the keyword heuristic always makes.
var queryTypeRules = []struct {
	queryType models.QueryType
	markers   []string
}{
	{models.QueryFactual, []string{"what", "which", "who", "where"}},
	{models.QueryExplanatory, []string{"how", "explain", "describe"}},
	{models.QuerySummarization, []string{"summarize", "summary", "brief"}},
}

// Routing classifies a query and decides the downstream stage order.
type Routing struct {
	tracker
	detector contracts.LanguageDetector
}

// NewRouting creates the routing stage.
func NewRouting(detector contracts.LanguageDetector) *Routing {
	return &Routing{
		tracker:  newTracker(string(models.StageRouting)),
		detector: detector,
	}
}

// Process classifies the query and produces a RoutingDecision. The stage
// itself has no failure mode beyond a malformed message.
func (s *Routing) Process(ctx context.Context, msg models.Message) (models.RoutingDecision, error) {
	s.begin("routing_query")

	in, err := content[models.RoutingInput](msg, models.StageRouting)
	if err != nil {
		s.fail()
		return models.RoutingDecision{}, err
	}

	lang := in.Language
	if lang == "" {
		var confidence float64
		lang, confidence = s.detector.Detect(in.Query)
		log.Debug().Str("language", lang).Float64("confidence", confidence).Msg("language detected")
	}

	queryType := classifyQuery(in.Query)
	order := stageOrder(queryType)

	decision := models.RoutingDecision{
		QueryType:         queryType,
		StageOrder:        order,
		Priority:          1,
		RequiresRetrieval: true,
		// Validation is gated on query type, consistent with the stage
		// order: factual and explanatory answers get fact-checked.
		RequiresValidation: queryType == models.QueryFactual || queryType == models.QueryExplanatory,
		Language:           lang,
	}

	s.done()
	log.Info().
		Str("query_type", string(queryType)).
		Str("language", lang).
		Int("stages", len(order)).
		Msg("query routed")

	return decision, nil
}

func classifyQuery(query string) models.QueryType {
	lower := strings.ToLower(query)
	for _, rule := range queryTypeRules {
		for _, marker := range rule.markers {
			if strings.Contains(lower, marker) {
				return rule.queryType
			}
		}
	}
	return models.QueryGeneral
}

func stageOrder(queryType models.QueryType) []models.StageKind {
	order := []models.StageKind{models.StageRetrieval, models.StageSynthesis}
	if queryType == models.QueryFactual || queryType == models.QueryExplanatory {
		order = append(order, models.StageValidation)
	}
	return order
}
