// Package budget tracks process-wide daily AI generation spend.
package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/ports"
)

// Tracker implements the BudgetTracker port. A single mutex covers the spend
// accumulator and the reset date; Authorize runs the whole
// estimate/afford/commit sequence under it so the check-then-act race between
// concurrent requests stays closed.
type Tracker struct {
	mu        sync.Mutex
	spendUSD  float64
	limitUSD  float64
	lastReset string
	requests  int
	now       func() time.Time
}

// NewTracker builds a tracker with the given daily limit in USD.
func NewTracker(dailyLimitUSD float64) *Tracker {
	if dailyLimitUSD <= 0 {
		dailyLimitUSD = domain.DefaultDailyBudgetUSD
	}
	return &Tracker{
		limitUSD: dailyLimitUSD,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// EstimateCost prices one generation attempt for the request. Token volume is
// derived from artifact count and descriptive text length; the estimate is
// intentionally rough but monotone in request size.
func (t *Tracker) EstimateCost(req domain.ProcessingRequest) float64 {
	chars := len(req.Operation) + len(req.Description) + len(req.OutputPath)
	for key, value := range req.Params {
		chars += len(key) + len(fmt.Sprint(value))
	}
	inputTokens := domain.PromptOverheadTokens +
		chars/domain.CharsPerToken +
		len(req.Inputs)*domain.TokensPerInputArtifact

	return float64(inputTokens)*domain.InputTokenPriceUSD +
		float64(domain.ResponseTokensEstimate)*domain.OutputTokenPriceUSD
}

// CanAfford reports whether cost fits under today's remaining budget.
// Returning false is a routing signal (use the fallback generator), not an
// error.
func (t *Tracker) CanAfford(cost float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNewDayLocked()
	return t.spendUSD+cost <= t.limitUSD
}

// Commit adds cost to today's spend.
func (t *Tracker) Commit(cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNewDayLocked()
	t.spendUSD += cost
	t.requests++
}

// Authorize estimates, checks, and commits in one critical section.
func (t *Tracker) Authorize(req domain.ProcessingRequest) (float64, bool) {
	cost := t.EstimateCost(req)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNewDayLocked()
	if t.spendUSD+cost > t.limitUSD {
		return cost, false
	}
	t.spendUSD += cost
	t.requests++
	return cost, true
}

// Status returns a snapshot of the ledger.
func (t *Tracker) Status() domain.BudgetState {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNewDayLocked()
	return domain.BudgetState{
		DailySpendUSD: t.spendUSD,
		DailyLimitUSD: t.limitUSD,
		LastReset:     t.lastReset,
		Requests:      t.requests,
	}
}

// resetIfNewDayLocked zeroes the accumulator on a UTC date transition.
// Idempotent: repeated calls within the same day are no-ops. Callers must
// hold t.mu.
func (t *Tracker) resetIfNewDayLocked() {
	today := t.now().UTC().Format(domain.BudgetDateFormat)
	if t.lastReset == today {
		return
	}
	t.lastReset = today
	t.spendUSD = 0
	t.requests = 0
}

var _ ports.BudgetTracker = (*Tracker)(nil)
