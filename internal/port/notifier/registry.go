package notifier

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Settings configure a notifier instance.
type Settings struct {
	Token     string
	APIURL    string
	PageLimit int
	Timeout   time.Duration
}

// Factory is a constructor function that creates a new Notifier instance.
type Factory func(s Settings) (Notifier, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a notifier factory available by name.
// It is typically called from an init() function in the adapter package.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("notifier: duplicate registration for %q", name))
	}
	factories[name] = factory
}

// New creates a new Notifier by name using the registered factory.
func New(name string, s Settings) (Notifier, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("notifier: unknown provider %q (available: %s)", name, strings.Join(Available(), ", "))
	}
	return factory(s)
}

// Available returns the sorted names of all registered notifiers.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
