package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps logical entity-type tags to their strategy implementations.
// Dispatch tries the explicit tag first; AppliesTo probing is the fallback
// for opaque payloads that only carry shape.
type Registry struct {
	mu   sync.RWMutex
	pull map[string]PullStrategy
	push map[string]PushStrategy
}

func NewRegistry() *Registry {
	return &Registry{
		pull: make(map[string]PullStrategy),
		push: make(map[string]PushStrategy),
	}
}

func (r *Registry) RegisterPull(strategy PullStrategy) error {
	if strategy == nil {
		return fmt.Errorf("core: pull strategy is nil")
	}
	modelType := strings.TrimSpace(strategy.ModelType())
	if modelType == "" {
		return fmt.Errorf("core: strategy model type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pull[modelType]; exists {
		return fmt.Errorf("core: pull strategy already registered: %s", modelType)
	}
	r.pull[modelType] = strategy
	return nil
}

func (r *Registry) RegisterPush(strategy PushStrategy) error {
	if strategy == nil {
		return fmt.Errorf("core: push strategy is nil")
	}
	modelType := strings.TrimSpace(strategy.ModelType())
	if modelType == "" {
		return fmt.Errorf("core: strategy model type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.push[modelType]; exists {
		return fmt.Errorf("core: push strategy already registered: %s", modelType)
	}
	r.push[modelType] = strategy
	return nil
}

func (r *Registry) Pull(modelType string) (PullStrategy, bool) {
	modelType = strings.TrimSpace(modelType)
	if modelType == "" {
		return nil, false
	}
	r.mu.RLock()
	strategy, ok := r.pull[modelType]
	r.mu.RUnlock()
	return strategy, ok
}

func (r *Registry) Push(modelType string) (PushStrategy, bool) {
	modelType = strings.TrimSpace(modelType)
	if modelType == "" {
		return nil, false
	}
	r.mu.RLock()
	strategy, ok := r.push[modelType]
	r.mu.RUnlock()
	return strategy, ok
}

func (r *Registry) PullFor(record Record) (PullStrategy, bool) {
	if tag := record.String("entity"); tag != "" {
		if strategy, ok := r.Pull(strings.ToLower(tag)); ok {
			return strategy, true
		}
	}
	for _, strategy := range r.ListPull() {
		if strategy.AppliesTo(record) {
			return strategy, true
		}
	}
	return nil, false
}

func (r *Registry) ListPull() []PullStrategy {
	r.mu.RLock()
	keys := make([]string, 0, len(r.pull))
	for modelType := range r.pull {
		keys = append(keys, modelType)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	strategies := make([]PullStrategy, 0, len(keys))
	r.mu.RLock()
	for _, modelType := range keys {
		strategies = append(strategies, r.pull[modelType])
	}
	r.mu.RUnlock()
	return strategies
}

func (r *Registry) ListPush() []PushStrategy {
	r.mu.RLock()
	keys := make([]string, 0, len(r.push))
	for modelType := range r.push {
		keys = append(keys, modelType)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	strategies := make([]PushStrategy, 0, len(keys))
	r.mu.RLock()
	for _, modelType := range keys {
		strategies = append(strategies, r.push[modelType])
	}
	r.mu.RUnlock()
	return strategies
}

var _ StrategyRegistry = (*Registry)(nil)
