package dexengine

import (
	"fmt"
	"sync"
	"time"
)

// RiskConfig defines optional spending limits. Zero disables a limit.
type RiskConfig struct {
	// Per-operation limit, in ETH value moved
	MaxOperationETH float64

	// Rolling 24h limit, in ETH value moved
	DailyLimitETH float64
}

// DefaultRiskConfig returns limits that are off.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{}
}

// RiskManager enforces risk limits
type RiskManager struct {
	config       RiskConfig
	dailyTracker *DailyLimitTracker
}

// NewRiskManager creates a risk manager with the given config
func NewRiskManager(config RiskConfig) *RiskManager {
	return &RiskManager{
		config:       config,
		dailyTracker: NewDailyLimitTracker(),
	}
}

// Check validates an operation moving valueETH against the limits without
// counting it
func (rm *RiskManager) Check(valueETH float64) *RiskCheckResult {
	return rm.evaluate(valueETH, rm.dailyTracker.GetDailyUsage())
}

// Reserve checks valueETH and, when allowed, counts it against the daily limit
// under the same lock, so concurrent operations cannot overshoot together.
// release uncounts an operation that did not go through; it is a no-op when
// the check failed.
func (rm *RiskManager) Reserve(valueETH float64) (result *RiskCheckResult, release func()) {
	release = func() {}
	rm.dailyTracker.mu.Lock()
	defer rm.dailyTracker.mu.Unlock()

	rm.dailyTracker.cleanup()
	result = rm.evaluate(valueETH, rm.dailyTracker.usage())
	if !result.Allowed {
		return result, release
	}

	id := rm.dailyTracker.add(valueETH)
	return result, func() { rm.dailyTracker.Release(id) }
}

func (rm *RiskManager) evaluate(valueETH, used float64) *RiskCheckResult {
	result := &RiskCheckResult{
		Allowed:         true,
		ValueETH:        valueETH,
		MaxOperationETH: rm.config.MaxOperationETH,
		DailyLimitETH:   rm.config.DailyLimitETH,
	}

	if rm.config.MaxOperationETH > 0 && valueETH > rm.config.MaxOperationETH {
		result.Allowed = false
		result.ExceedsMaxOperation = true
		result.Reason = fmt.Sprintf("operation value %.4f ETH exceeds max %.4f ETH",
			valueETH, rm.config.MaxOperationETH)
		return result
	}

	if rm.config.DailyLimitETH > 0 {
		result.DailyUsedETH = used
		result.DailyRemainingETH = rm.config.DailyLimitETH - used

		if used+valueETH > rm.config.DailyLimitETH {
			result.Allowed = false
			result.ExceedsDailyLimit = true
			result.Reason = fmt.Sprintf("daily limit exceeded: used %.4f + %.4f > %.4f ETH",
				used, valueETH, rm.config.DailyLimitETH)
			return result
		}
	}

	return result
}

// Record counts a settled operation against the daily limit
func (rm *RiskManager) Record(valueETH float64) {
	rm.dailyTracker.Record(valueETH)
}

// Status returns the configured limits and current usage
func (rm *RiskManager) Status() RiskStatus {
	used := rm.dailyTracker.GetDailyUsage()
	return RiskStatus{
		MaxOperationETH:   rm.config.MaxOperationETH,
		DailyLimitETH:     rm.config.DailyLimitETH,
		DailyUsedETH:      used,
		DailyRemainingETH: rm.config.DailyLimitETH - used,
	}
}

// RiskStatus reports limits and usage
type RiskStatus struct {
	MaxOperationETH   float64 `json:"max_operation_eth"`
	DailyLimitETH     float64 `json:"daily_limit_eth"`
	DailyUsedETH      float64 `json:"daily_used_eth"`
	DailyRemainingETH float64 `json:"daily_remaining_eth"`
}

// DailyLimitTracker tracks rolling 24-hour usage
type DailyLimitTracker struct {
	mu      sync.Mutex
	records []usageRecord
	nextID  uint64
	now     func() time.Time
}

type usageRecord struct {
	id        uint64
	timestamp time.Time
	valueETH  float64
}

// NewDailyLimitTracker creates a new tracker
func NewDailyLimitTracker() *DailyLimitTracker {
	return &DailyLimitTracker{now: time.Now}
}

// Record adds an entry to the tracker
func (t *DailyLimitTracker) Record(valueETH float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.add(valueETH)
	t.cleanup()
}

// Release drops the entry with the given id, if it is still tracked
func (t *DailyLimitTracker) Release(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range t.records {
		if r.id == id {
			t.records = append(t.records[:i], t.records[i+1:]...)
			return
		}
	}
}

// GetDailyUsage calculates total usage in the last 24 hours
func (t *DailyLimitTracker) GetDailyUsage() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanup()
	return t.usage()
}

// add appends an entry and returns its id; callers hold t.mu
func (t *DailyLimitTracker) add(valueETH float64) uint64 {
	t.nextID++
	t.records = append(t.records, usageRecord{id: t.nextID, timestamp: t.now(), valueETH: valueETH})
	return t.nextID
}

// usage sums the tracked entries; callers hold t.mu
func (t *DailyLimitTracker) usage() float64 {
	total := 0.0
	for _, r := range t.records {
		total += r.valueETH
	}
	return total
}

// cleanup drops entries older than 24 hours; callers hold t.mu
func (t *DailyLimitTracker) cleanup() {
	cutoff := t.now().Add(-24 * time.Hour)

	kept := t.records[:0]
	for _, r := range t.records {
		if r.timestamp.After(cutoff) {
			kept = append(kept, r)
		}
	}
	t.records = kept
}

// Reset clears all tracked usage
func (t *DailyLimitTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = nil
}
