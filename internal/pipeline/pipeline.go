// Package pipeline orchestrates the full matching run: normalize, dedupe,
// pre-filter, index, retrieve, rerank, triage, judge, rank. Stages only ever
// narrow the candidate set; per-candidate failures become summary counters,
// never run failures.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkarpov-dev/jobsieve/internal/filtering"
	"github.com/mkarpov-dev/jobsieve/internal/index"
	"github.com/mkarpov-dev/jobsieve/internal/ingest"
	"github.com/mkarpov-dev/jobsieve/internal/job"
	"github.com/mkarpov-dev/jobsieve/internal/match"
	"github.com/mkarpov-dev/jobsieve/internal/scoring"
)

// ErrIndexUnavailable means the similarity index did not answer the
// pre-flight ping. It is one of the two fatal conditions of a run.
var ErrIndexUnavailable = errors.New("similarity index unavailable")

const defaultWorkers = 4

// Config tunes a pipeline without changing its semantics.
type Config struct {
	// MaxPostings truncates the raw input before normalization. Zero means
	// no limit.
	MaxPostings int
	// MaxLLMCalls caps the combined triage and judge call count. Exhaustion
	// excludes the remaining candidates; it is never fatal. Zero means no
	// limit.
	MaxLLMCalls int
	// Workers bounds per-candidate concurrency for the model-call stages.
	Workers int
	// CallTimeout bounds each per-candidate model call. Zero means no
	// per-call timeout beyond the run context.
	CallTimeout time.Duration
}

// Deps are the stage implementations a pipeline runs.
type Deps struct {
	Logger     *zap.Logger
	Normalizer *ingest.Normalizer
	Filters    []filtering.Filter
	Indexer    *match.Indexer
	Retriever  *match.Retriever
	Reranker   *match.Reranker
	Quick      *scoring.QuickScorer
	Judge      *scoring.JudgeScorer
	Index      index.VectorIndex
}

// StageCount records how one stage narrowed the candidate set.
type StageCount struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Excluded  int `json:"excluded"`
}

// Summary is the per-stage accounting of a run. Every posting that entered
// the pipeline is attributed to the stage that excluded it.
type Summary struct {
	Normalized  StageCount `json:"normalized"`
	Deduped     StageCount `json:"deduped"`
	PreFiltered StageCount `json:"pre_filtered"`
	Indexed     StageCount `json:"indexed"`
	Retrieved   StageCount `json:"retrieved"`
	Reranked    StageCount `json:"reranked"`
	QuickScored StageCount `json:"quick_scored"`
	Judged      StageCount `json:"judged"`
}

// Match pairs a surviving posting with its score breakdown.
type Match struct {
	Posting *job.Posting        `json:"posting"`
	Score   *job.ScoreBreakdown `json:"score"`
}

// RunResult is the outcome of one pipeline run. A cancelled run returns
// whatever was completed with Cancelled set, not an error.
type RunResult struct {
	RunID     uuid.UUID `json:"run_id"`
	Ranked    []*Match  `json:"ranked"`
	Summary   Summary   `json:"summary"`
	Cancelled bool      `json:"cancelled,omitempty"`
}

// Pipeline wires the stages together. It is safe for sequential reuse; each
// Run is independent.
type Pipeline struct {
	cfg  Config
	deps Deps
}

func New(cfg Config, deps Deps) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

// Run executes the full pipeline for one profile over one batch of raw
// postings. Only an unreachable index or an invalid profile is fatal;
// everything else degrades into summary counters and a possibly short
// ranking.
func (p *Pipeline) Run(ctx context.Context, profile *job.CandidateProfile, raws []ingest.RawPosting) (*RunResult, error) {
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("profile rejected: %w", err)
	}
	if err := p.deps.Index.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	result := &RunResult{RunID: uuid.New()}
	logger := p.deps.Logger.With(zap.String("run_id", result.RunID.String()))
	budget := newCallBudget(p.cfg.MaxLLMCalls)

	if p.cfg.MaxPostings > 0 && len(raws) > p.cfg.MaxPostings {
		logger.Warn("posting budget reached, truncating input",
			zap.Int("received", len(raws)),
			zap.Int("budget", p.cfg.MaxPostings),
		)
		raws = raws[:p.cfg.MaxPostings]
	}

	// Normalize.
	postings := make([]*job.Posting, 0, len(raws))
	for _, raw := range raws {
		posting, err := p.deps.Normalizer.Normalize(raw)
		if err != nil {
			logger.Warn("posting rejected by normalization", zap.Error(err))
			continue
		}
		postings = append(postings, posting)
	}
	result.Summary.Normalized = stageCount(len(raws), len(postings))

	// Dedupe.
	deduped := ingest.Deduplicate(postings)
	result.Summary.Deduped = stageCount(len(postings), len(deduped))

	// Pre-filter.
	filtered, _ := filtering.Run(logger, profile, p.deps.Filters, deduped)
	result.Summary.PreFiltered = stageCount(len(deduped), len(filtered))

	// Index: embed and upsert each survivor concurrently.
	indexedSlots := make([]bool, len(filtered))
	p.runConcurrent(ctx, len(filtered), func(callCtx context.Context, i int) {
		if err := p.deps.Indexer.Index(callCtx, filtered[i]); err != nil {
			logger.Warn("posting excluded at indexing", zap.Error(err))
			return
		}
		indexedSlots[i] = true
	})
	indexed := collect(filtered, indexedSlots)
	result.Summary.Indexed = stageCount(len(filtered), len(indexed))

	if ctx.Err() != nil || len(indexed) == 0 {
		result.Cancelled = ctx.Err() != nil
		return result, nil
	}

	// Retrieve among the postings this run actually indexed.
	known := &job.Postings{Items: indexed}
	retrieved, err := p.deps.Retriever.Retrieve(ctx, profile, known)
	if err != nil {
		logger.Error("retrieval failed, no candidates to rank", zap.Error(err))
		result.Summary.Retrieved = stageCount(len(indexed), 0)
		result.Cancelled = ctx.Err() != nil
		return result, nil
	}
	result.Summary.Retrieved = stageCount(len(indexed), len(retrieved))

	// Rerank.
	query := profile.Query()
	if query == "" {
		query = profile.ResumeText
	}
	reranked := p.deps.Reranker.Rerank(ctx, query, retrieved)
	result.Summary.Reranked = stageCount(len(retrieved), len(reranked))

	// Quick triage.
	quickSlots := make([]*scoring.QuickResult, len(reranked))
	p.runConcurrent(ctx, len(reranked), func(callCtx context.Context, i int) {
		if !budget.take() {
			logger.Warn("llm call budget exhausted, excluding candidate",
				zap.String("posting", reranked[i].Key.String()))
			return
		}
		qr, err := p.deps.Quick.Score(callCtx, profile, reranked[i])
		if err != nil {
			logger.Warn("posting excluded at quick scoring", zap.Error(err))
			return
		}
		quickSlots[i] = qr
	})

	passed := make([]*job.Posting, 0, len(reranked))
	for i, qr := range quickSlots {
		if qr != nil && p.deps.Quick.Passes(qr) {
			passed = append(passed, reranked[i])
		}
	}
	result.Summary.QuickScored = stageCount(len(reranked), len(passed))

	if ctx.Err() != nil {
		result.Cancelled = true
		return result, nil
	}

	// Judge.
	judgeSlots := make([]*job.ScoreBreakdown, len(passed))
	p.runConcurrent(ctx, len(passed), func(callCtx context.Context, i int) {
		if !budget.take() {
			logger.Warn("llm call budget exhausted, excluding candidate",
				zap.String("posting", passed[i].Key.String()))
			return
		}
		breakdown, err := p.deps.Judge.Score(callCtx, profile, passed[i])
		if err != nil {
			logger.Warn("posting excluded at judge scoring", zap.Error(err))
			return
		}
		judgeSlots[i] = breakdown
	})

	for i, breakdown := range judgeSlots {
		if breakdown == nil {
			continue
		}
		result.Ranked = append(result.Ranked, &Match{Posting: passed[i], Score: breakdown})
	}
	result.Summary.Judged = stageCount(len(passed), len(result.Ranked))

	sort.SliceStable(result.Ranked, func(a, b int) bool {
		if result.Ranked[a].Score.Overall != result.Ranked[b].Score.Overall {
			return result.Ranked[a].Score.Overall > result.Ranked[b].Score.Overall
		}
		return result.Ranked[a].Posting.IngestedAt.After(result.Ranked[b].Posting.IngestedAt)
	})

	result.Cancelled = ctx.Err() != nil

	logger.Info("pipeline run complete",
		zap.Int("ranked", len(result.Ranked)),
		zap.Bool("cancelled", result.Cancelled),
	)

	return result, nil
}

// runConcurrent runs work(i) for i in [0,n) on a bounded worker pool. Work
// not yet started when the context is cancelled is simply never dispatched;
// callers read what the work recorded in its slot.
func (p *Pipeline) runConcurrent(ctx context.Context, n int, work func(ctx context.Context, i int)) {
	sem := make(chan struct{}, p.cfg.Workers)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			callCtx := ctx
			if p.cfg.CallTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
				defer cancel()
			}
			work(callCtx, i)
		}(i)
	}
	wg.Wait()
}

func collect(in []*job.Posting, kept []bool) []*job.Posting {
	out := make([]*job.Posting, 0, len(in))
	for i, p := range in {
		if kept[i] {
			out = append(out, p)
		}
	}
	return out
}

func stageCount(in, out int) StageCount {
	return StageCount{Attempted: in, Succeeded: out, Excluded: in - out}
}

// callBudget is a shared atomic counter over the model-call stages. A zero
// budget means unlimited.
type callBudget struct {
	remaining atomic.Int64
	unlimited bool
}

func newCallBudget(maxCalls int) *callBudget {
	b := &callBudget{unlimited: maxCalls <= 0}
	b.remaining.Store(int64(maxCalls))
	return b
}

// take reserves one call, reporting false once the budget is spent.
func (b *callBudget) take() bool {
	if b.unlimited {
		return true
	}
	return b.remaining.Add(-1) >= 0
}
