package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// BackendPinger checks search backend availability.
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// CompilerChecker checks LLM compiler availability.
type CompilerChecker interface {
	HealthCheck(ctx context.Context) error
}
