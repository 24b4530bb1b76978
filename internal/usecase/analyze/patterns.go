package analyze

import (
	"regexp"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
)

// Semantic field tokens attached to extracted filters. The field resolver
// expands them to concrete per-template field names later.
const (
	semanticAmount = "amount"
	semanticDate   = "date"
	semanticStatus = "status"
	semanticEntity = "entity_name"
)

var (
	overPattern = regexp.MustCompile(
		`(?i)\b(?:over|above|more than|greater than|at least|exceeding)\s+\$?([\d,]+(?:\.\d+)?)`)
	underPattern = regexp.MustCompile(
		`(?i)\b(?:under|below|less than|at most|up to|cheaper than)\s+\$?([\d,]+(?:\.\d+)?)`)
	betweenPattern = regexp.MustCompile(
		`(?i)\bbetween\s+\$?([\d,]+(?:\.\d+)?)\s+and\s+\$?([\d,]+(?:\.\d+)?)`)
	bareNumberPattern = regexp.MustCompile(`\$?([\d,]+(?:\.\d+)?)`)

	lastNDaysPattern = regexp.MustCompile(`(?i)\b(?:last|past)\s+(\d+)\s+days?\b`)
	isoDatePattern   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

	quotedPattern = regexp.MustCompile(`"([^"]+)"`)

	aggCountPattern = regexp.MustCompile(
		`(?i)\b(?:how many|count of|count|number of)\b`)
	aggSumPattern = regexp.MustCompile(`(?i)\b(?:total|sum of|sum)\b`)
	aggAvgPattern = regexp.MustCompile(`(?i)\b(?:average|avg|mean)\b`)
	aggUniquePattern = regexp.MustCompile(`(?i)\b(?:unique|distinct)\b`)

	comparePattern = regexp.MustCompile(
		`(?i)\b(?:vs\.?|versus|compared?\s+(?:to|with|against))\b`)
	periodVsPattern = regexp.MustCompile(
		`(?i)\b(?:last|this|previous)\s+(?:week|month|quarter|year)\s+(?:vs\.?|versus|against|to)\b`)

	filterSignalPattern = regexp.MustCompile(
		`(?i)\b(?:over|above|under|below|between|more than|less than|greater than|at least|at most)\b`)

	sortRecentPattern = regexp.MustCompile(`(?i)\b(?:most recent|recent|latest|newest)\b`)
	sortOldestPattern = regexp.MustCompile(`(?i)\b(?:oldest|earliest)\b`)
)

// dateVocabulary maps relative phrases to keywords. Multi-word phrases come
// first so "last week" wins over a later "week" token scan.
var dateVocabulary = []struct {
	phrase  string
	keyword analysis.DateKeyword
}{
	{"last week", analysis.DateLastWeek},
	{"last month", analysis.DateLastMonth},
	{"last quarter", analysis.DateLastQuarter},
	{"last year", analysis.DateLastYear},
	{"past week", analysis.DateLastWeek},
	{"past month", analysis.DateLastMonth},
	{"this week", analysis.DateThisWeek},
	{"this month", analysis.DateThisMonth},
	{"this year", analysis.DateThisYear},
	{"yesterday", analysis.DateYesterday},
	{"today", analysis.DateToday},
}

// statusVocabulary is the controlled set of status words that become exact
// term filters rather than free text.
var statusVocabulary = map[string]struct{}{
	"paid": {}, "unpaid": {}, "pending": {}, "overdue": {},
	"approved": {}, "rejected": {}, "draft": {}, "sent": {},
	"open": {}, "closed": {}, "cancelled": {},
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {},
	"for": {}, "in": {}, "on": {}, "at": {}, "to": {}, "with": {},
	"by": {}, "is": {}, "are": {}, "was": {}, "were": {}, "all": {},
	"me": {}, "my": {}, "show": {}, "find": {}, "get": {}, "list": {},
	"what": {}, "which": {}, "that": {}, "from": {}, "give": {},
}
