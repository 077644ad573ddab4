package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/soloagency/internal/api"
	"github.com/ShayCichocki/soloagency/internal/config"
	"github.com/ShayCichocki/soloagency/internal/conversation"
	"github.com/ShayCichocki/soloagency/internal/logging"
	"github.com/ShayCichocki/soloagency/internal/orchestrator"
	"github.com/ShayCichocki/soloagency/internal/session"
	"github.com/ShayCichocki/soloagency/internal/specialist"
	"github.com/ShayCichocki/soloagency/internal/state"
)

// loadConfig reads --config when given, otherwise the layered config.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app is the wired set of components a command works with.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *state.DB
	registry *specialist.Registry
	pipeline *orchestrator.Orchestrator
	sessions *session.Service
}

type appOptions struct {
	// pipeline builds the completer, orchestrator and session service.
	pipeline     bool
	freeMessages int
	onEvent      orchestrator.EventHandler
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	a.registry, err = specialist.Load(cfg.Specialists.File)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.db, err = state.OpenAndMigrate(cfg.Storage.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	if !opts.pipeline {
		return a, nil
	}

	completer, err := createCompleter(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	mode := conversation.Mode(cfg.Conversation.Mode)
	if mode == conversation.ModeThread {
		if _, ok := completer.(api.ThreadProvider); !ok {
			completer = api.NewThreadClient(completer, a.db)
		}
	}

	a.pipeline, err = orchestrator.New(orchestrator.Deps{
		Registry:  a.registry,
		Completer: completer,
		Conversations: conversation.NewManager(conversation.Config{
			Window:      cfg.Conversation.Window,
			QueryBudget: cfg.Conversation.QueryBudget,
		}, threaderOf(completer)),
		Logger:  logger,
		OnEvent: opts.onEvent,
	}, pipelineConfig(cfg))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	free := cfg.Session.FreeMessages
	if opts.freeMessages >= 0 {
		free = opts.freeMessages
	}
	a.sessions = session.New(a.pipeline, a.db, session.Config{
		Mode:          mode,
		SharedContext: cfg.ProfileContext(),
		FreeMessages:  free,
	}, logger)

	return a, nil
}

func threaderOf(c api.Completer) conversation.Threader {
	if tp, ok := c.(api.ThreadProvider); ok {
		return tp
	}
	return nil
}

// pipelineConfig maps the file configuration onto the orchestrator's.
func pipelineConfig(cfg *config.Config) orchestrator.Config {
	return orchestrator.Config{
		DefaultSpecialist: cfg.Defaults.Specialist,
		Classifier: orchestrator.ClassifierConfig{
			Temperature:    cfg.Classifier.Temperature,
			MaxTokens:      cfg.Classifier.MaxTokens,
			MaxSpecialists: cfg.Classifier.MaxSpecialists,
		},
		Dispatch: orchestrator.DispatchConfig{
			Temperature: cfg.Dispatch.Temperature,
			MaxTokens:   cfg.Dispatch.MaxTokens,
			Concurrency: cfg.Dispatch.Concurrency,
			Policy:      orchestrator.Policy(cfg.Dispatch.Policy),
		},
		Synthesis: orchestrator.SynthesisConfig{
			Temperature: cfg.Synthesis.Temperature,
			MaxTokens:   cfg.Synthesis.MaxTokens,
			Structured:  cfg.Synthesis.Structured,
		},
		WordBudget: cfg.Shaping.WordBudget,
		Timeout:    cfg.Timeouts.Completion,
	}
}

// Close releases the database and flushes the logger.
func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close storage", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
