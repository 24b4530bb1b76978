// Package querydex provides an embedded Go client for the querydex query
// compiler: natural-language queries are analyzed, resolved against
// canonical field mappings, compiled into query trees, and executed
// against a search backend.
//
// # Low-level API: explicit control
//
//	client, _ := querydex.New(
//	    querydex.WithRedis([]string{"localhost:6379"}, ""),
//	    querydex.WithSearchBackend("http://localhost:9200", ""),
//	)
//	resp, _ := client.Search(ctx, querydex.SearchRequest{
//	    Query: "invoices over $1000 from last month", Template: "invoices",
//	})
//
// # High-level API: schema-first with Go generics
//
//	type Invoice struct {
//	    ID     string  `querydex:"id,keyword"`
//	    Vendor string  `querydex:"vendor_name,keyword,vendor|supplier"`
//	    Total  float64 `querydex:"total_amount,number,amount|cost"`
//	    Date   string  `querydex:"invoice_date,date,when"`
//	}
//
//	tmpl, _ := querydex.NewTemplate[Invoice](client, "invoices")
//	tmpl.Register(ctx)
//	hits, _ := tmpl.Search().Query("invoices over $1000").Do(ctx)
package querydex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/db"
	dbRedis "github.com/kailas-cloud/querydex/internal/db/redis"
	mappingrepo "github.com/kailas-cloud/querydex/internal/repository/mapping"
	schemarepo "github.com/kailas-cloud/querydex/internal/repository/schema"
	"github.com/kailas-cloud/querydex/internal/transport/essearch"
	openaiLLM "github.com/kailas-cloud/querydex/internal/transport/openai"
	analyzeuc "github.com/kailas-cloud/querydex/internal/usecase/analyze"
	compareuc "github.com/kailas-cloud/querydex/internal/usecase/compare"
	compileuc "github.com/kailas-cloud/querydex/internal/usecase/compile"
	registryuc "github.com/kailas-cloud/querydex/internal/usecase/registry"
	resolveuc "github.com/kailas-cloud/querydex/internal/usecase/resolve"
	searchuc "github.com/kailas-cloud/querydex/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the querydex SDK entry point.
type Client struct {
	store      db.Store
	reg        *registryuc.Registry
	schemas    *schemarepo.Provider
	analyzer   *analyzeuc.Analyzer
	compiler   *compileuc.Compiler
	searchSvc  *searchuc.Service
	compareSvc *compareuc.Service
}

// New creates a querydex Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{keyPrefix: "querydex:"}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("querydex: database address required (use WithRedis)")
	}
	if cfg.backendURL == "" {
		return nil, errors.New("querydex: search backend required (use WithSearchBackend)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("querydex: create redis store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("querydex: database not ready: %w", err)
	}

	return wireClient(ctx, store, cfg)
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig) (*Client, error) {
	logger := cfg.logger

	mappingRepo := mappingrepo.New(store, cfg.keyPrefix)
	reg := registryuc.New(mappingRepo, nil, logger)
	if err := reg.RefreshCache(ctx); err != nil {
		logger.Warn("querydex: registry cache load failed", zap.Error(err))
	}

	schemas := schemarepo.New(store, cfg.keyPrefix, logger)
	if err := schemas.Refresh(ctx); err != nil {
		logger.Warn("querydex: template metadata load failed", zap.Error(err))
	}

	resolver := resolveuc.New(reg)
	analyzer := analyzeuc.New(analyzeuc.DefaultConfig())

	backend := essearch.New(&essearch.Config{
		BaseURL: cfg.backendURL,
		APIKey:  cfg.backendAPIKey,
		Timeout: cfg.backendTimeout,
		Logger:  logger,
	})

	// Keep the interface nil when no compiler is configured; a typed nil
	// pointer inside the interface would not compare equal to nil.
	var escalator compileuc.Escalator
	if cfg.compilerAPIKey != "" && cfg.compilerModel != "" {
		escalator = openaiLLM.NewCompiler(&openaiLLM.Config{
			APIKey:  cfg.compilerAPIKey,
			BaseURL: cfg.compilerBaseURL,
			Model:   cfg.compilerModel,
			Logger:  logger,
		})
	}

	compileCfg := compileuc.DefaultConfig()
	if cfg.escalationThreshold > 0 {
		compileCfg.EscalationThreshold = cfg.escalationThreshold
	}
	compiler := compileuc.New(compileCfg, analyzer, resolver, escalator, nil, logger)

	searchSvc := searchuc.New(compiler, backend, schemas, nil, nil, logger)
	compareSvc := compareuc.New(resolver, backend, schemas, logger)

	return &Client{
		store:      store,
		reg:        reg,
		schemas:    schemas,
		analyzer:   analyzer,
		compiler:   compiler,
		searchSvc:  searchSvc,
		compareSvc: compareSvc,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Fields returns the canonical field mapping administration service.
func (c *Client) Fields() *FieldsService {
	return &FieldsService{reg: c.reg}
}

// Refresh reloads canonical mappings and template metadata from storage.
func (c *Client) Refresh(ctx context.Context) error {
	if err := c.reg.RefreshCache(ctx); err != nil {
		return fmt.Errorf("refresh mappings: %w", err)
	}
	if err := c.schemas.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh templates: %w", err)
	}
	return nil
}
