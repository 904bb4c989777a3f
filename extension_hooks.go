package crmsync

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-crm-sync/core"
)

// StrategyPack groups the strategies one extension contributes, so custom
// entity types land in the registry alongside the stock ones.
type StrategyPack struct {
	Name string
	Pull []core.PullStrategy
	Push []core.PushStrategy
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks collects downstream contributions before engine assembly:
// strategy packs for extra entity types and command/query bundles built
// around the engine's service surface.
type ExtensionHooks struct {
	mu sync.RWMutex

	strategyPacks map[string]StrategyPack
	bundles       map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		strategyPacks: map[string]StrategyPack{},
		bundles:       map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterStrategyPack(pack StrategyPack) error {
	if h == nil {
		return fmt.Errorf("crmsync: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("crmsync: strategy pack name is required")
	}
	if len(pack.Pull) == 0 && len(pack.Push) == 0 {
		return fmt.Errorf("crmsync: strategy pack %q has no strategies", name)
	}

	normalized := StrategyPack{
		Name: name,
		Pull: append([]core.PullStrategy(nil), pack.Pull...),
		Push: append([]core.PushStrategy(nil), pack.Push...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.strategyPacks[name]; exists {
		return fmt.Errorf("crmsync: strategy pack %q already registered", name)
	}
	h.strategyPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("crmsync: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("crmsync: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("crmsync: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("crmsync: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

func (h *ExtensionHooks) ApplyStrategyPacks(registry core.StrategyRegistry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("crmsync: registry is required")
	}

	for _, pack := range h.StrategyPacks() {
		for _, pull := range pack.Pull {
			if pull == nil {
				return fmt.Errorf("crmsync: strategy pack %q contains nil pull strategy", pack.Name)
			}
			if err := registry.RegisterPull(pull); err != nil {
				return err
			}
		}
		for _, push := range pack.Push {
			if push == nil {
				return fmt.Errorf("crmsync: strategy pack %q contains nil push strategy", pack.Name)
			}
			if err := registry.RegisterPush(push); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("crmsync: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) StrategyPacks() []StrategyPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.strategyPacks))
	for name := range h.strategyPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]StrategyPack, 0, len(names))
	for _, name := range names {
		pack := h.strategyPacks[name]
		out = append(out, StrategyPack{
			Name: pack.Name,
			Pull: append([]core.PullStrategy(nil), pack.Pull...),
			Push: append([]core.PushStrategy(nil), pack.Push...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
