// Package analyze classifies query intent and extracts structured filters
// from free-form query text, without calling a language model.
package analyze

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
)

// Config holds the confidence weights and text heuristics thresholds.
// All call sites share this one definition; nothing re-declares the values.
type Config struct {
	BaseConfidence    float64 `yaml:"base_confidence"`
	IntentWeight      float64 `yaml:"intent_weight"`
	FilterWeight      float64 `yaml:"filter_weight"`
	AggregationWeight float64 `yaml:"aggregation_weight"`
	SortWeight        float64 `yaml:"sort_weight"`
	AmbiguityPenalty  float64 `yaml:"ambiguity_penalty"`
	FullTextMinWords  int     `yaml:"fulltext_min_words"`
}

// DefaultConfig returns the standard analysis weights.
func DefaultConfig() Config {
	return Config{
		BaseConfidence:    0.2,
		IntentWeight:      0.3,
		FilterWeight:      0.15,
		AggregationWeight: 0.15,
		SortWeight:        0.1,
		AmbiguityPenalty:  0.1,
		FullTextMinWords:  6,
	}
}

// Analyzer is the heuristic intent classifier and filter extractor.
// Stateless; safe for concurrent use.
type Analyzer struct {
	cfg Config
}

// New creates an Analyzer with the given weights.
func New(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze classifies the query text and extracts filters. It never fails:
// unrecognized input degrades to intent=retrieve with low confidence so the
// arbitration gate can escalate.
func (a *Analyzer) Analyze(queryText string, availableFields []string) analysis.QueryAnalysis {
	text := strings.TrimSpace(queryText)
	if text == "" {
		qa, _ := analysis.New(
			analysis.IntentRetrieve, 0, nil, nil, analysis.TypeHybrid, false, nil, nil)
		return qa
	}

	remaining := text
	var filters []analysis.FilterSpec
	ambiguous := false

	// Quoted substrings become exact phrase filters.
	exactOnly := false
	for _, m := range quotedPattern.FindAllStringSubmatch(remaining, -1) {
		if f, err := analysis.NewPhraseFilter(m[1]); err == nil {
			filters = append(filters, f)
		}
	}
	if m := quotedPattern.FindStringSubmatch(text); m != nil && strings.TrimSpace(quotedPattern.ReplaceAllString(text, "")) == "" {
		exactOnly = true
	}
	remaining = quotedPattern.ReplaceAllString(remaining, " ")

	// Numeric ranges. Between wins over single-bound patterns.
	remaining, filters = a.extractNumeric(remaining, filters, &ambiguous)

	// Date ranges.
	remaining, filters = a.extractDates(remaining, filters)

	// Status vocabulary becomes exact term filters.
	remaining, filters = extractStatus(remaining, filters)

	aggregations := detectAggregations(remaining)
	intent, intentSignal := classifyIntent(remaining, filters, aggregations)
	sort := detectSort(remaining, availableFields)

	terms := residualTerms(remaining)

	structured := len(filters) > 0 || len(aggregations) > 0 || sort != nil
	requiresFullText := !structured &&
		intent == analysis.IntentRetrieve &&
		len(strings.Fields(text)) >= a.cfg.FullTextMinWords

	queryType := analysis.TypeHybrid
	switch {
	case exactOnly:
		queryType = analysis.TypeExact
	case requiresFullText:
		queryType = analysis.TypeFullText
	}

	confidence := a.cfg.BaseConfidence
	if intentSignal {
		confidence += a.cfg.IntentWeight
	}
	confidence += a.cfg.FilterWeight * float64(len(filters))
	if len(aggregations) > 0 {
		confidence += a.cfg.AggregationWeight
	}
	if sort != nil {
		confidence += a.cfg.SortWeight
	}
	if ambiguous {
		confidence -= a.cfg.AmbiguityPenalty
	}

	qa, err := analysis.New(
		intent, confidence, filters, aggregations, queryType, requiresFullText, sort, terms)
	if err != nil {
		// Unreachable with a valid intent; degrade rather than fail.
		qa, _ = analysis.New(
			analysis.IntentRetrieve, 0, nil, nil, analysis.TypeHybrid, false, nil, terms)
	}
	return qa
}

// extractNumeric pulls range filters out of comparative numeric phrasing.
func (a *Analyzer) extractNumeric(
	remaining string, filters []analysis.FilterSpec, ambiguous *bool,
) (string, []analysis.FilterSpec) {
	extracted := false

	if m := betweenPattern.FindStringSubmatch(remaining); m != nil {
		lo, okLo := parseNumber(m[1])
		hi, okHi := parseNumber(m[2])
		if okLo && okHi {
			if f, err := analysis.NewRangeFilter(semanticAmount, &lo, &hi); err == nil {
				filters = append(filters, f)
				extracted = true
			}
		}
		remaining = betweenPattern.ReplaceAllString(remaining, " ")
	}
	if m := overPattern.FindStringSubmatch(remaining); m != nil {
		if v, ok := parseNumber(m[1]); ok {
			if f, err := analysis.NewRangeFilter(semanticAmount, &v, nil); err == nil {
				filters = append(filters, f)
				extracted = true
			}
		}
		remaining = overPattern.ReplaceAllString(remaining, " ")
	}
	if m := underPattern.FindStringSubmatch(remaining); m != nil {
		if v, ok := parseNumber(m[1]); ok {
			if f, err := analysis.NewRangeFilter(semanticAmount, nil, &v); err == nil {
				filters = append(filters, f)
				extracted = true
			}
		}
		remaining = underPattern.ReplaceAllString(remaining, " ")
	}

	// Two bare numbers without an explicit pattern: default to a single
	// lower bound on the first one, at reduced confidence.
	if !extracted && strings.Contains(remaining, "$") {
		nums := bareNumberPattern.FindAllStringSubmatch(remaining, -1)
		if len(nums) >= 2 {
			if v, ok := parseNumber(nums[0][1]); ok {
				if f, err := analysis.NewRangeFilter(semanticAmount, &v, nil); err == nil {
					filters = append(filters, f)
					*ambiguous = true
					remaining = bareNumberPattern.ReplaceAllString(remaining, " ")
				}
			}
		}
	}

	return remaining, filters
}

// extractDates pulls relative-keyword and absolute ISO date filters.
func (a *Analyzer) extractDates(
	remaining string, filters []analysis.FilterSpec,
) (string, []analysis.FilterSpec) {
	if m := lastNDaysPattern.FindStringSubmatch(remaining); m != nil {
		if days, err := strconv.Atoi(m[1]); err == nil && days > 0 {
			if f, err := analysis.NewDateKeywordFilter(semanticDate, analysis.DateLastNDays, days); err == nil {
				filters = append(filters, f)
			}
		}
		remaining = lastNDaysPattern.ReplaceAllString(remaining, " ")
	}

	lower := strings.ToLower(remaining)
	for _, entry := range dateVocabulary {
		if idx := strings.Index(lower, entry.phrase); idx >= 0 {
			if f, err := analysis.NewDateKeywordFilter(semanticDate, entry.keyword, 0); err == nil {
				filters = append(filters, f)
			}
			remaining = remaining[:idx] + " " + remaining[idx+len(entry.phrase):]
			lower = strings.ToLower(remaining)
		}
	}

	if dates := isoDatePattern.FindAllStringSubmatch(remaining, -1); len(dates) > 0 {
		gte := dates[0][1]
		lte := gte
		if len(dates) > 1 {
			lte = dates[1][1]
		}
		if f, err := analysis.NewDateBoundsFilter(semanticDate, gte, lte); err == nil {
			filters = append(filters, f)
		}
		remaining = isoDatePattern.ReplaceAllString(remaining, " ")
	}

	return remaining, filters
}

func extractStatus(
	remaining string, filters []analysis.FilterSpec,
) (string, []analysis.FilterSpec) {
	words := strings.Fields(remaining)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		cleaned := strings.ToLower(strings.Trim(w, ".,!?"))
		if _, ok := statusVocabulary[cleaned]; ok {
			if f, err := analysis.NewTermFilter(semanticStatus, cleaned); err == nil {
				filters = append(filters, f)
				continue
			}
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " "), filters
}

func detectAggregations(text string) []analysis.AggregationSpec {
	var aggs []analysis.AggregationSpec
	switch {
	case aggSumPattern.MatchString(text):
		aggs = append(aggs, analysis.AggregationSpec{Field: semanticAmount, Type: analysis.AggSum})
	case aggAvgPattern.MatchString(text):
		aggs = append(aggs, analysis.AggregationSpec{Field: semanticAmount, Type: analysis.AggAvg})
	}
	if aggUniquePattern.MatchString(text) {
		aggs = append(aggs, analysis.AggregationSpec{Field: semanticEntity, Type: analysis.AggCardinality})
	} else if aggCountPattern.MatchString(text) && len(aggs) == 0 {
		// Plain document count needs no field resolution.
		aggs = append(aggs, analysis.AggregationSpec{Type: analysis.AggCount})
	}
	return aggs
}

// classifyIntent picks an intent from keyword signals. Compare outranks
// aggregate, which outranks filter; anything else is retrieve.
func classifyIntent(
	text string, filters []analysis.FilterSpec, aggs []analysis.AggregationSpec,
) (analysis.Intent, bool) {
	if comparePattern.MatchString(text) || periodVsPattern.MatchString(text) {
		return analysis.IntentCompare, true
	}
	if len(aggs) > 0 {
		return analysis.IntentAggregate, true
	}
	if filterSignalPattern.MatchString(text) || hasStructuredFilter(filters) {
		return analysis.IntentFilter, true
	}
	return analysis.IntentRetrieve, false
}

// hasStructuredFilter reports whether any filter is more specific than a
// bare phrase match.
func hasStructuredFilter(filters []analysis.FilterSpec) bool {
	for _, f := range filters {
		if f.Kind() != analysis.KindPhrase {
			return true
		}
	}
	return false
}

// detectSort maps recency words to a timestamp ordering on the first
// available field that looks like a timestamp. Without such a field the
// sort is dropped entirely; a semantic token here would travel all the way
// to the backend as a sort field it does not have.
func detectSort(text string, availableFields []string) *analysis.Sort {
	var dir analysis.SortDirection
	switch {
	case sortRecentPattern.MatchString(text):
		dir = analysis.SortDesc
	case sortOldestPattern.MatchString(text):
		dir = analysis.SortAsc
	default:
		return nil
	}

	for _, f := range availableFields {
		lower := strings.ToLower(f)
		if strings.Contains(lower, "date") || strings.HasSuffix(lower, "_at") ||
			strings.Contains(lower, "time") {
			return &analysis.Sort{Field: f, Direction: dir}
		}
	}
	return nil
}

// residualTerms tokenizes what is left after extraction, dropping stop
// words, punctuation, and leftover numerics.
func residualTerms(text string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		cleaned := strings.Trim(w, ".,!?$\"'()")
		if cleaned == "" {
			continue
		}
		if _, ok := stopWords[cleaned]; ok {
			continue
		}
		if _, err := strconv.ParseFloat(strings.ReplaceAll(cleaned, ",", ""), 64); err == nil {
			continue
		}
		terms = append(terms, cleaned)
	}
	return terms
}

// parseNumber normalizes a currency/number literal, stripping $ and commas.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
