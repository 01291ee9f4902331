package plugin

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/someip/internal/core"
)

// ReporterFactory creates a fresh, uninitialised reporter.
type ReporterFactory func() Reporter

var (
	mu        sync.RWMutex
	reporters = make(map[string]ReporterFactory)
)

// RegisterReporter makes a reporter available by name.
// Registering the same name twice is an error.
func RegisterReporter(name string, factory ReporterFactory) error {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := reporters[name]; exists {
		return fmt.Errorf("reporter '%s' already registered", name)
	}
	reporters[name] = factory
	return nil
}

// NewReporter creates the reporter registered under name.
func NewReporter(name string) (Reporter, error) {
	mu.RLock()
	factory, exists := reporters[name]
	mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("reporter '%s': %w", name, core.ErrPluginNotFound)
	}
	return factory(), nil
}

// Reporters lists registered reporter names in sorted order.
func Reporters() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(reporters))
	for name := range reporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
