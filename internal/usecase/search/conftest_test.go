package search

import (
	"context"

	"github.com/kailas-cloud/querydex/internal/domain/query"
	"github.com/kailas-cloud/querydex/internal/domain/schema"
	"github.com/kailas-cloud/querydex/internal/usecase/compile"
)

// stubCompiler serves a canned compilation output.
type stubCompiler struct {
	out compile.Output
	err error
}

func (s *stubCompiler) Compile(
	_ context.Context, _ string, _ *schema.TemplateContext,
) (compile.Output, error) {
	if s.err != nil {
		return compile.Output{}, s.err
	}
	return s.out, nil
}

// stubBackend records the execute request and serves a canned result.
type stubBackend struct {
	result ExecuteResult
	err    error
	last   ExecuteRequest
	calls  int
}

func (s *stubBackend) Execute(_ context.Context, req ExecuteRequest) (ExecuteResult, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return ExecuteResult{}, s.err
	}
	return s.result, nil
}

// stubSummarizer counts invocations.
type stubSummarizer struct {
	answer string
	err    error
	calls  int
}

func (s *stubSummarizer) Summarize(_ context.Context, _ string, _ []Document) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

// memCache is a minimal in-process answer cache.
type memCache struct {
	entries map[string]string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]string{}}
}

func (c *memCache) key(query string, ids []string) string {
	k := query
	for _, id := range ids {
		k += "|" + id
	}
	return k
}

func (c *memCache) Get(query string, resultIDs []string, _ map[string]string) (string, bool) {
	answer, ok := c.entries[c.key(query, resultIDs)]
	return answer, ok
}

func (c *memCache) Set(query string, resultIDs []string, answer string, _ map[string]string) {
	c.entries[c.key(query, resultIDs)] = answer
}

func compiledMatch(field, value string) compile.Output {
	return compile.Output{Query: query.Match{Field: field, Value: value}}
}
