// Package capture contains the capture scheduler and the event formation
// engine.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/retracehq/retrace/internal/db"
	"github.com/retracehq/retrace/internal/enrich"
	"github.com/retracehq/retrace/internal/policy"
	"github.com/retracehq/retrace/pkg/models"
)

// ProgressEvidenceManual marks events flagged by a user-initiated progress
// capture.
const ProgressEvidenceManual = "manual"

// TriggerInput parameterizes one manual (or timer-driven) capture.
type TriggerInput struct {
	PrimaryDisplayID string
	Intent           models.CaptureIntent
}

// SchedulerDeps wires the scheduler's collaborators.
type SchedulerDeps struct {
	Capturer ScreenCapturer
	Tracker  ActivityTracker
	Enricher *enrich.Enricher
	Engine   *Engine
	Events   *db.EventStore
	Notifier Notifier
	Rules    *policy.RuleSet
}

// Scheduler owns the repeating capture timer, permission gating, and the
// manual-trigger entry point. The timer path and UI-initiated triggers run
// the identical code path and are safe to interleave (the engine serializes
// formation decisions).
type Scheduler struct {
	capturer ScreenCapturer
	tracker  ActivityTracker
	enricher *enrich.Enricher
	engine   *Engine
	events   *db.EventStore
	notifier Notifier
	rules    *policy.RuleSet

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	intervalMs int64
}

// NewScheduler creates a scheduler.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	rules := deps.Rules
	if rules == nil {
		rules = &policy.RuleSet{}
	}
	return &Scheduler{
		capturer: deps.Capturer,
		tracker:  deps.Tracker,
		enricher: deps.Enricher,
		engine:   deps.Engine,
		events:   deps.Events,
		notifier: notifier,
		rules:    rules,
	}
}

// Start begins the repeating capture timer and activity-window tracking.
// Calling Start while running resets the timer; timers never stack.
func (s *Scheduler) Start(intervalMinutes int) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.intervalMs = int64(intervalMinutes) * 60 * 1000
	interval := time.Duration(s.intervalMs) * time.Millisecond
	s.mu.Unlock()

	s.tracker.Start()

	go s.runLoop(ctx, interval)
	log.Info().Int("intervalMinutes", intervalMinutes).Msg("Capture scheduler started")
}

// Stop cancels the timer and stops activity-window tracking. Idempotent.
// An in-flight manual trigger is not forcibly cancelled; it completes and
// its result is discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	s.tracker.Stop()
	if wasRunning {
		log.Info().Msg("Capture scheduler stopped")
	}
}

// IntervalMs returns the currently configured capture interval in
// milliseconds, so manual captures dedup against the same window as
// automatic ones.
func (s *Scheduler) IntervalMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intervalMs > 0 {
		return s.intervalMs
	}
	return 5 * 60 * 1000
}

func (s *Scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runLoop drives automatic captures. One failed cycle never kills the
// repeating timer.
func (s *Scheduler) runLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.TriggerManualCapture(ctx, TriggerInput{Intent: models.IntentDefault}); err != nil {
				log.Error().Err(err).Msg("Automatic capture cycle failed")
			}
		}
	}
}

// TriggerManualCapture is the unified entry point used by the internal
// timer and by user-initiated UI actions. Permission failure and an empty
// capture are terminal reported states, not errors; only failures that
// prevent forming any event propagate.
func (s *Scheduler) TriggerManualCapture(ctx context.Context, input TriggerInput) (models.FormationResult, error) {
	if !s.capturer.CheckScreenCapturePermission(ctx) {
		log.Warn().Msg("Screen capture permission missing")
		s.notifier.PermissionRequired()
		return models.FormationResult{}, nil
	}

	// Pause tracking for the duration of the capture so the pipeline does
	// not observe its own capture UI. Tracking is stopped once on entry and
	// once again on the way out regardless of path, then resumed when the
	// scheduler is running.
	s.tracker.Stop()
	defer func() {
		s.tracker.Stop()
		if s.isRunning() {
			s.tracker.Start()
		}
	}()

	snapshot := s.tracker.Snapshot()

	decision := policy.Evaluate(s.rules, policyContext(snapshot, nil))
	if decision.Capture == policy.ActionSkip {
		log.Debug().Str("bundleId", bundleID(snapshot)).Msg("Capture skipped by automation policy")
		return models.FormationResult{}, nil
	}

	captures, err := s.capturer.CaptureAllDisplays(ctx)
	if err != nil {
		return models.FormationResult{}, err
	}
	s.tracker.Start()

	if len(captures) == 0 {
		log.Debug().Msg("Capture returned no displays")
		return models.FormationResult{}, nil
	}

	activityCtx := s.enricher.CollectActivityContext(ctx, snapshot)

	opts := input.Intent.Options()
	if opts.EnqueueToLLMQueue {
		llmDecision := policy.Evaluate(s.rules, policyContext(snapshot, activityCtx))
		if llmDecision.LLM == policy.ActionSkip {
			opts.EnqueueToLLMQueue = false
		}
	}

	result, err := s.engine.ProcessCaptureGroup(ctx, GroupInput{
		Captures:          captures,
		IntervalMs:        s.IntervalMs(),
		PrimaryDisplayID:  input.PrimaryDisplayID,
		Context:           activityCtx,
		EnqueueToLLMQueue: opts.EnqueueToLLMQueue,
		AllowMerge:        opts.AllowMerge,
	})
	if err != nil {
		return result, err
	}

	if input.Intent == models.IntentProjectProgress && result.EventID != 0 {
		if err := s.events.MarkProjectProgress(ctx, result.EventID, ProgressEvidenceManual); err != nil {
			return result, err
		}
		s.notifier.EventUpdated(result.EventID)
	}

	return result, nil
}

func policyContext(snap *models.ForegroundSnapshot, ac *models.ActivityContext) policy.Context {
	pctx := policy.Context{}
	if snap != nil {
		pctx.AppBundleID = snap.App.BundleID
	}
	if ac != nil && ac.URL != nil {
		pctx.Host = ac.URL.Host
	}
	return pctx
}

func bundleID(snap *models.ForegroundSnapshot) string {
	if snap == nil {
		return ""
	}
	return snap.App.BundleID
}
