package engine

import (
	"context"
	"errors"

	"github.com/lotas/chatnav/internal/applog"
)

var (
	ErrAIDisabled            = errors.New("AI labels are disabled")
	ErrNoSummarizer          = errors.New("no summarizer configured")
	ErrSummarizerUnavailable = errors.New("summarizer unavailable")
)

type summaryJob struct {
	id   string
	text string
}

// Summarize generates an AI label for every marker. Failures for single
// markers keep their original text. The whole run fails only when the
// summarizer is unavailable or ctx is cancelled; the state then returns
// to idle.
func (e *Engine) Summarize(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.opts.DisableAI:
		e.mu.Unlock()
		return ErrAIDisabled
	case e.opts.Summarizer == nil:
		e.mu.Unlock()
		return ErrNoSummarizer
	case e.sumState == SummarizerProcessing:
		e.mu.Unlock()
		return nil
	}
	e.sumState = SummarizerProcessing
	e.progress = 0
	jobs := make([]summaryJob, 0, e.reg.Len())
	for _, m := range e.reg.Markers() {
		jobs = append(jobs, summaryJob{id: m.ID, text: m.OriginalText})
	}
	e.notify()
	e.mu.Unlock()

	s := e.opts.Summarizer
	if !s.Available(ctx) {
		e.finishSummaries(SummarizerIdle)
		return ErrSummarizerUnavailable
	}

	failed := 0
	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		label, err := s.Summarize(ctx, job.text)
		e.mu.Lock()
		if err != nil {
			failed++
			applog.Error("summarize.marker", err, "id", job.id)
		} else if label != "" {
			e.reg.SetSummary(job.id, label)
		}
		e.progress = float64(i+1) / float64(len(jobs))
		e.notify()
		e.mu.Unlock()
	}

	if err := ctx.Err(); err != nil {
		e.finishSummaries(SummarizerIdle)
		return err
	}
	applog.Info("summarize.done", "conversation", e.opts.ConversationID, "markers", len(jobs), "failed", failed)
	e.finishSummaries(SummarizerCompleted)
	return nil
}

func (e *Engine) finishSummaries(st SummarizerState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sumState = st
	e.progress = 0
	if st == SummarizerCompleted {
		e.useSummaries = true
		e.saveSummaries()
	}
	e.notify()
}

// ToggleSummaries acts like the summarizer button: from idle it generates
// labels, afterwards it switches between AI labels and original text.
func (e *Engine) ToggleSummaries(ctx context.Context) error {
	e.mu.Lock()
	switch e.sumState {
	case SummarizerProcessing:
		e.mu.Unlock()
		return nil
	case SummarizerCompleted:
		e.sumState = SummarizerOriginal
		e.useSummaries = false
	case SummarizerOriginal:
		e.sumState = SummarizerCompleted
		e.useSummaries = true
	default:
		e.mu.Unlock()
		return e.Summarize(ctx)
	}
	e.saveSummaries()
	e.notify()
	e.mu.Unlock()
	return nil
}

// ClearSummaries drops every AI label and resets the feature to idle.
func (e *Engine) ClearSummaries() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sumState == SummarizerProcessing {
		return
	}
	if e.sumState == SummarizerIdle && !e.useSummaries && len(e.reg.Summaries()) == 0 {
		return
	}
	e.reg.ClearSummaries()
	e.sumState = SummarizerIdle
	e.useSummaries = false
	e.saveSummaries()
	e.notify()
}

func (e *Engine) saveSummaries() {
	id := e.opts.ConversationID
	if e.opts.Store == nil || id == "" {
		return
	}
	rec := SummaryRecord{
		State:        e.sumState,
		UseSummaries: e.useSummaries,
		Labels:       e.reg.Summaries(),
	}
	if err := e.opts.Store.SaveSummaries(id, rec); err != nil {
		applog.Error("store.save_summaries", err, "conversation", id)
	}
}
