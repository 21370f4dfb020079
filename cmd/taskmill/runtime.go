package main

import (
	"fmt"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/telemetry"

	"github.com/taskmill/taskmill/internal/broadcast"
	"github.com/taskmill/taskmill/internal/config"
	"github.com/taskmill/taskmill/internal/controller"
	"github.com/taskmill/taskmill/internal/engine"
	"github.com/taskmill/taskmill/internal/store"
)

// runtime holds the wired components shared by every command.
type runtime struct {
	cfg     *config.Config
	store   store.Store
	broker  *broadcast.Broker
	ctl     *controller.Controller
	closers []func()
}

// newRuntime loads configuration and wires the store, broker, provider and
// controller. withProvider is false for read-only commands (sessions, show)
// that never call the generator.
func newRuntime(cli *CLI, withProvider bool) (*runtime, error) {
	rt := &runtime{}

	var err error
	if cli.Config != "" {
		rt.cfg, err = config.LoadFile(cli.Config)
	} else {
		rt.cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if err := rt.setupTelemetry(); err != nil {
		return nil, err
	}
	if err := rt.setupStore(cli.Memory); err != nil {
		rt.Close()
		return nil, err
	}
	rt.setupBroker()

	var provider engine.Generator
	if withProvider {
		provider, err = rt.buildProvider()
		if err != nil {
			rt.Close()
			return nil, err
		}
	}
	rt.ctl = controller.New(rt.store, rt.broker, engine.New(provider))
	return rt, nil
}

func (rt *runtime) setupTelemetry() error {
	var (
		telem telemetry.Exporter
		err   error
	)
	if rt.cfg.Telemetry.Enabled {
		telem, err = telemetry.NewExporter(rt.cfg.Telemetry.Protocol, rt.cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("creating telemetry exporter: %w", err)
		}
	} else {
		telem = telemetry.NewNoopExporter()
	}
	rt.addCloser(func() { telem.Close() })
	return nil
}

func (rt *runtime) setupStore(inMemory bool) error {
	if inMemory || rt.cfg.Storage.InMemory {
		rt.store = store.NewMemoryStore()
		return nil
	}
	s, err := store.NewSQLiteStore(rt.cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening checkpoint store: %w", err)
	}
	rt.store = s
	rt.addCloser(func() { s.Close() })
	return nil
}

func (rt *runtime) setupBroker() {
	opts := broadcast.Options{
		Capacity:  rt.cfg.Events.Capacity,
		Keepalive: rt.cfg.Events.Keepalive(),
	}
	if rt.cfg.Events.NATSURL != "" {
		mirror, err := broadcast.NewNATSMirror(rt.cfg.Events.NATSURL, rt.cfg.Events.NATSSubject)
		if err != nil {
			// The mirror is best-effort; run without it.
			fmt.Printf("warning: NATS mirror unavailable: %v\n", err)
		} else {
			opts.Mirror = mirror
			rt.addCloser(mirror.Close)
		}
	}
	rt.broker = broadcast.New(opts)
}

func (rt *runtime) buildProvider() (engine.Generator, error) {
	if rt.cfg.LLM.Provider == "" || rt.cfg.LLM.Model == "" {
		return nil, fmt.Errorf("LLM provider and model must be configured")
	}
	provider, err := llm.NewProvider(llm.ProviderConfig{
		Provider:  rt.cfg.LLM.Provider,
		Model:     rt.cfg.LLM.Model,
		APIKey:    rt.cfg.GetAPIKey(),
		MaxTokens: rt.cfg.LLM.MaxTokens,
		BaseURL:   rt.cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	return provider, nil
}

func (rt *runtime) addCloser(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// Close releases resources in reverse order of creation.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}
