package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/invested/internal/debate"
	"github.com/ShayCichocki/invested/internal/knowledge"
	"github.com/ShayCichocki/invested/internal/state"
	"github.com/ShayCichocki/invested/internal/tracker"
	"github.com/ShayCichocki/invested/pkg/models"
)

func cleanStory() *models.Artifact {
	return &models.Artifact{
		ID:          "3",
		Key:         "SHOP-3",
		Title:       "Saved addresses",
		Description: "As a returning shopper I want my address saved so that checkout is quicker",
		Type:        models.ArtifactTypeStory,
		AcceptanceCriteria: []string{
			"address persists across sessions",
			"saved address pre-fills the form",
		},
		Metadata: map[string]any{models.MetaUpdatedAt: "2026-08-01T10:00:00Z"},
	}
}

// fakeProduct drafts and synthesizes by cloning; split proposals are canned.
type fakeProduct struct {
	drafts      int
	synths      int
	splitCalled int
	draftErr    error
}

func (f *fakeProduct) Draft(ctx context.Context, base *models.Artifact, snippets []models.ContextSnippet, violations []models.Violation) (*models.Artifact, error) {
	f.drafts++
	if f.draftErr != nil {
		return nil, f.draftErr
	}
	return base.Clone(), nil
}

func (f *fakeProduct) Synthesize(ctx context.Context, draft *models.Artifact, qa, dev *models.CritiqueResult) (*models.Artifact, error) {
	f.synths++
	return draft.Clone(), nil
}

func (f *fakeProduct) ProposeSplit(ctx context.Context, original *models.Artifact, violations []models.Violation) (*models.SplitProposal, error) {
	f.splitCalled++
	return &models.SplitProposal{
		OriginalKey: original.Key,
		Rationale:   "scope spans two deliverables",
		Parts:       []models.Artifact{*original.Clone(), *original.Clone()},
	}, nil
}

// fakeCritic returns a scripted critique per round.
type fakeCritic struct {
	results []*models.CritiqueResult
	calls   int
}

func (f *fakeCritic) Critique(ctx context.Context, draft *models.Artifact, snippets []models.ContextSnippet) (*models.CritiqueResult, error) {
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i], nil
}

func happyCritique() *models.CritiqueResult {
	return &models.CritiqueResult{
		Confidence:  0.9,
		Critique:    "clear, testable and focused story with solid acceptance criteria",
		Assessment:  models.AssessmentExcellent,
		Feasibility: models.FeasibilityFeasible,
	}
}

func unhappyCritique() *models.CritiqueResult {
	return &models.CritiqueResult{
		Confidence: 0.4,
		Critique:   "vague scope, missing constraints",
		Assessment: models.AssessmentPoor,
		Violations: []models.Violation{{
			Criterion:   models.CriterionSmall,
			Severity:    models.SeverityMajor,
			Description: "covers several deliverables",
		}},
		Feasibility: models.FeasibilityRequiresChanges,
	}
}

// fixedRetriever returns the same snippets for every query.
type fixedRetriever struct {
	snippets  []models.ContextSnippet
	calls     int
	lastLimit int
}

func (f *fixedRetriever) Search(ctx context.Context, query, sourceFilter string, limit int) ([]models.ContextSnippet, error) {
	f.calls++
	f.lastLimit = limit
	return f.snippets, nil
}

func newTestOptimizer(t *testing.T, opts Options) (*Optimizer, *tracker.MemorySource) {
	t.Helper()
	src := NewMemorySourceWith(cleanStory())
	opts.Tracker = src
	if opts.Product == nil {
		opts.Product = &fakeProduct{}
	}
	if opts.QA == nil {
		opts.QA = &fakeCritic{results: []*models.CritiqueResult{happyCritique()}}
	}
	if opts.Dev == nil {
		opts.Dev = &fakeCritic{results: []*models.CritiqueResult{happyCritique()}}
	}
	o, err := NewOptimizer(opts)
	if err != nil {
		t.Fatalf("NewOptimizer() error = %v", err)
	}
	return o, src
}

// NewMemorySourceWith seeds a memory tracker for tests.
func NewMemorySourceWith(artifacts ...*models.Artifact) *tracker.MemorySource {
	src := tracker.NewMemorySource()
	for _, a := range artifacts {
		src.Put(a)
	}
	return src
}

// cancellingCritic cancels the run context from inside a critique call,
// the shape of a user aborting the live view mid-run.
type cancellingCritic struct {
	cancel context.CancelFunc
	inner  *fakeCritic
}

func (c *cancellingCritic) Critique(ctx context.Context, draft *models.Artifact, snippets []models.ContextSnippet) (*models.CritiqueResult, error) {
	c.cancel()
	return c.inner.Critique(ctx, draft, snippets)
}

func TestRun_CancelledRunSkipsCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, src := newTestOptimizer(t, Options{
		QA: &cancellingCritic{
			cancel: cancel,
			inner:  &fakeCritic{results: []*models.CritiqueResult{happyCritique()}},
		},
	})

	result := o.Run(ctx, "SHOP-3")

	if result.Success {
		t.Fatal("Run() succeeded, want abort after cancellation")
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", result.Err)
	}
	if result.Committed {
		t.Error("Committed = true, want no write-back after cancellation")
	}
	if src.Commits() != 0 {
		t.Errorf("Commits() = %d, want 0", src.Commits())
	}
	if result.Status != state.RunStatusFailed {
		t.Errorf("Status = %q, want %q", result.Status, state.RunStatusFailed)
	}
}

func TestRun_ConvergesAndCommits(t *testing.T) {
	o, src := newTestOptimizer(t, Options{})

	result := o.Run(context.Background(), "SHOP-3")
	if !result.Success {
		t.Fatalf("Run() failed: %v", result.Err)
	}
	if result.Status != state.RunStatusConverged {
		t.Errorf("Status = %q, want converged", result.Status)
	}
	if !result.Committed {
		t.Error("converged run must commit")
	}
	if src.Commits() != 1 {
		t.Errorf("tracker commits = %d, want 1", src.Commits())
	}
	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", result.Iterations)
	}
	if result.Confidence <= debate.ConvergenceThreshold {
		t.Errorf("Confidence = %v, want above threshold", result.Confidence)
	}
}

func TestRun_CeilingCommitsWithoutSplit(t *testing.T) {
	qa := &fakeCritic{results: []*models.CritiqueResult{unhappyCritique()}}
	o, src := newTestOptimizer(t, Options{QA: qa})

	result := o.Run(context.Background(), "SHOP-3")
	if !result.Success {
		t.Fatalf("Run() failed: %v", result.Err)
	}
	if result.Status != state.RunStatusCeiling {
		t.Errorf("Status = %q, want ceiling", result.Status)
	}
	if result.Iterations != debate.MaxIterations {
		t.Errorf("Iterations = %d, want %d", result.Iterations, debate.MaxIterations)
	}
	// With splitting off, even an unconverged run commits its best version.
	if !result.Committed || src.Commits() != 1 {
		t.Errorf("Committed = %v, commits = %d", result.Committed, src.Commits())
	}
}

func TestRun_UnconvergedProposesSplit(t *testing.T) {
	product := &fakeProduct{}
	qa := &fakeCritic{results: []*models.CritiqueResult{unhappyCritique()}}
	o, src := newTestOptimizer(t, Options{Product: product, QA: qa, AllowSplit: true})

	result := o.Run(context.Background(), "SHOP-3")
	if !result.Success {
		t.Fatalf("Run() failed: %v", result.Err)
	}
	if result.Status != state.RunStatusSplit {
		t.Errorf("Status = %q, want split", result.Status)
	}
	if result.Proposal == nil || len(result.Proposal.Parts) != 2 {
		t.Fatalf("Proposal = %+v, want two parts", result.Proposal)
	}
	if result.Proposal.OriginalKey != "SHOP-3" {
		t.Errorf("OriginalKey = %q", result.Proposal.OriginalKey)
	}
	if result.Committed || src.Commits() != 0 {
		t.Error("split proposal must not commit")
	}
	if product.splitCalled != 1 {
		t.Errorf("ProposeSplit called %d times, want 1", product.splitCalled)
	}
}

func TestRun_MissingArtifactFails(t *testing.T) {
	o, _ := newTestOptimizer(t, Options{})

	result := o.Run(context.Background(), "NOPE-1")
	if result.Success {
		t.Fatal("Run() succeeded for a missing artifact")
	}
	if !errors.Is(result.Err, tracker.ErrNotFound) {
		t.Errorf("Err = %v, want ErrNotFound", result.Err)
	}
	if result.Status != state.RunStatusFailed {
		t.Errorf("Status = %q, want failed", result.Status)
	}
}

func TestRun_AgentErrorSurfacesWithPartialProgress(t *testing.T) {
	wantErr := errors.New("model unavailable")
	product := &fakeProduct{draftErr: wantErr}
	o, _ := newTestOptimizer(t, Options{Product: product})

	result := o.Run(context.Background(), "SHOP-3")
	if result.Success {
		t.Fatal("Run() succeeded despite agent failure")
	}
	if !errors.Is(result.Err, wantErr) {
		t.Errorf("Err = %v, want wrapped %v", result.Err, wantErr)
	}
	// The fetched artifact is still reported as best-so-far.
	if result.Artifact == nil || result.Artifact.Key != "SHOP-3" {
		t.Errorf("Artifact = %+v, want the fetched original", result.Artifact)
	}
}

func TestRun_RetrievalHappensOnce(t *testing.T) {
	retriever := &fixedRetriever{snippets: []models.ContextSnippet{{Content: "payment context"}}}
	qa := &fakeCritic{results: []*models.CritiqueResult{
		unhappyCritique(), unhappyCritique(), happyCritique(),
	}}
	o, _ := newTestOptimizer(t, Options{QA: qa, Retriever: retriever})

	result := o.Run(context.Background(), "SHOP-3")
	if !result.Success {
		t.Fatalf("Run() failed: %v", result.Err)
	}
	if retriever.calls != 1 {
		t.Errorf("retriever consulted %d times, want once per run", retriever.calls)
	}
}

func TestRun_SearchLimitReachesRetriever(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"configured limit wins", 3, 3},
		{"zero falls back to the default", 0, knowledge.DefaultSearchLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retriever := &fixedRetriever{}
			o, _ := newTestOptimizer(t, Options{Retriever: retriever, SearchLimit: tt.limit})

			result := o.Run(context.Background(), "SHOP-3")
			if !result.Success {
				t.Fatalf("Run() failed: %v", result.Err)
			}
			if retriever.lastLimit != tt.wantLimit {
				t.Errorf("retriever limit = %d, want %d", retriever.lastLimit, tt.wantLimit)
			}
		})
	}
}

func TestRun_PersistsHistory(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	o, _ := newTestOptimizer(t, Options{History: db})
	result := o.Run(context.Background(), "SHOP-3")
	if !result.Success {
		t.Fatalf("Run() failed: %v", result.Err)
	}

	run, err := db.GetRun(result.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Status != state.RunStatusConverged {
		t.Errorf("persisted status = %q, want converged", run.Status)
	}
	if run.Iterations != result.Iterations {
		t.Errorf("persisted iterations = %d, want %d", run.Iterations, result.Iterations)
	}

	records, err := db.ListIterations(result.RunID)
	if err != nil {
		t.Fatalf("ListIterations() error = %v", err)
	}
	if len(records) != result.Iterations {
		t.Errorf("persisted %d iteration records, want %d", len(records), result.Iterations)
	}
}

func TestRun_EmitsLifecycleEvents(t *testing.T) {
	o, _ := newTestOptimizer(t, Options{})

	var types []EventType
	o.SetEventSink(func(e Event) {
		types = append(types, e.Type)
	})

	if result := o.Run(context.Background(), "SHOP-3"); !result.Success {
		t.Fatalf("Run() failed: %v", result.Err)
	}
	if len(types) < 3 {
		t.Fatalf("saw %d events, want at least start/nodes/finish", len(types))
	}
	if types[0] != EventRunStarted {
		t.Errorf("first event = %q, want run_started", types[0])
	}
	if types[len(types)-1] != EventRunFinished {
		t.Errorf("last event = %q, want run_finished", types[len(types)-1])
	}

	var iterations int
	for _, et := range types {
		if et == EventIterationDone {
			iterations++
		}
	}
	if iterations != 1 {
		t.Errorf("iteration_done events = %d, want 1", iterations)
	}
}

func TestRun_AgenticMatchesDeterministicOutcome(t *testing.T) {
	// With a nil decider the supervisor walks the same linear flow, so both
	// variants converge identically on a clean story.
	o, _ := newTestOptimizer(t, Options{Agentic: true})

	result := o.Run(context.Background(), "SHOP-3")
	if !result.Success {
		t.Fatalf("Run() failed: %v", result.Err)
	}
	if result.Status != state.RunStatusConverged {
		t.Errorf("Status = %q, want converged", result.Status)
	}
	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", result.Iterations)
	}
}

func TestNewOptimizer_RequiresCollaborators(t *testing.T) {
	if _, err := NewOptimizer(Options{}); err == nil {
		t.Error("NewOptimizer() accepted missing tracker")
	}
	if _, err := NewOptimizer(Options{Tracker: tracker.NewMemorySource()}); err == nil {
		t.Error("NewOptimizer() accepted missing agents")
	}
}
