package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/germanamz/relnotes/pkg/modeladapter"
	"github.com/germanamz/relnotes/pkg/providers/openai"
)

// ProviderFactory creates a Completer from the provider configuration.
type ProviderFactory func(cfg openai.Config) (modeladapter.Completer, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[openai.Kind]ProviderFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories[openai.KindAzure] = newOpenAI
		factories[openai.KindOpenAI] = newOpenAI
	})
}

// RegisterProvider registers a custom provider factory under the given kind.
// It can be called before New to extend the engine with additional providers.
func RegisterProvider(kind openai.Kind, factory ProviderFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

func getFactory(kind openai.Kind) (ProviderFactory, bool) {
	ensureDefaults()

	if kind == "" {
		kind = openai.KindAzure
	}

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func newOpenAI(cfg openai.Config) (modeladapter.Completer, error) {
	return openai.New(cfg)
}

// buildCompleter creates the provider Completer using the registered factory
// for its Kind.
func buildCompleter(cfg openai.Config) (modeladapter.Completer, error) {
	factory, ok := getFactory(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("engine: unknown provider kind %q", cfg.Kind)
	}

	return factory(cfg)
}

// pinger is implemented by completers that can probe their endpoint.
type pinger interface {
	Ping(ctx context.Context) error
}
