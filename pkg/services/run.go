package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/autofin/autofin/pkg/models"
	"github.com/autofin/autofin/pkg/orchestrator"
)

// StartRunRequest describes one batch submission: either prepared tasks or a
// raw JSON payload that the pipeline's parse stage will validate.
type StartRunRequest struct {
	Tasks   []models.Task `json:"tasks,omitempty"`
	Payload []byte        `json:"payload,omitempty"`
	UserID  string        `json:"user_id,omitempty"`
}

// Run executes completion pipelines and keeps the results addressable by
// session ID.
type Run struct {
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger

	mu      sync.RWMutex
	results map[string]*orchestrator.RunResult
	order   []string
}

// NewRun creates a new run service.
func NewRun(orch *orchestrator.Orchestrator, logger *slog.Logger) *Run {
	if logger == nil {
		logger = slog.Default()
	}

	return &Run{
		orchestrator: orch,
		logger:       logger.With("module", "run_service"),
		results:      map[string]*orchestrator.RunResult{},
	}
}

// HealthCheck reports whether the service can accept runs.
func (r *Run) HealthCheck(_ context.Context) (string, bool) {
	if r.orchestrator == nil {
		return "orchestrator not initialized", false
	}

	return "run service is healthy", true
}

// Start runs the pipeline over the batch synchronously and records the
// result. Setup failures (parse, sequence) surface as the returned error;
// the result is recorded either way so the session stays inspectable.
func (r *Run) Start(ctx context.Context, req StartRunRequest) (*orchestrator.RunResult, error) {
	if len(req.Tasks) == 0 && len(req.Payload) == 0 {
		return nil, ErrEmptyBatch
	}

	result, err := r.orchestrator.Run(ctx, orchestrator.Request{
		Tasks:   req.Tasks,
		Payload: req.Payload,
		UserID:  req.UserID,
	})

	if result != nil {
		r.store(result)
	}

	if err != nil {
		r.logger.ErrorContext(ctx, "run setup failed", "error", err)

		return result, err
	}

	return result, nil
}

// FetchByID retrieves a recorded run by its session ID.
func (r *Run) FetchByID(_ context.Context, sessionID string) (*orchestrator.RunResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result, ok := r.results[sessionID]
	if !ok {
		return nil, ErrRunNotFound
	}

	return result, nil
}

// List returns recorded runs, newest first.
func (r *Run) List(_ context.Context) []*orchestrator.RunResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*orchestrator.RunResult, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		results = append(results, r.results[r.order[i]])
	}

	return results
}

func (r *Run) store(result *orchestrator.RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.results[result.SessionID]; !exists {
		r.order = append(r.order, result.SessionID)
	}

	r.results[result.SessionID] = result
}
