package core

import "sync"

// BatchModeController holds the call options that decorate every outgoing
// call. Transaction mode contributes a single useSingleTransaction marker.
type BatchModeController struct {
	mu      sync.RWMutex
	options []CallOption
}

func NewBatchModeController() *BatchModeController {
	return &BatchModeController{}
}

// SetTransactionMode turns the single-transaction marker on or off. Both
// directions are idempotent.
func (c *BatchModeController) SetTransactionMode(enabled bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = removeOption(c.options, CallOptionSingleTransaction)
	if enabled {
		c.options = append(c.options, CallOption{Name: CallOptionSingleTransaction, Value: true})
	}
}

func (c *BatchModeController) TransactionMode() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, option := range c.options {
		if option.Name == CallOptionSingleTransaction {
			return true
		}
	}
	return false
}

// Options returns a copy of the active call options.
func (c *BatchModeController) Options() []CallOption {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.options) == 0 {
		return nil
	}
	return append([]CallOption(nil), c.options...)
}

func removeOption(options []CallOption, name string) []CallOption {
	out := options[:0]
	for _, option := range options {
		if option.Name != name {
			out = append(out, option)
		}
	}
	return out
}
