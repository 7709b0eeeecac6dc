package main

import (
	"context"
	"fmt"

	"banter/internal/agents"
	"banter/internal/apis/giphy"
	"banter/internal/apis/wikimedia"
	"banter/internal/archive"
	"banter/internal/bot"
	"banter/internal/config"
	"banter/internal/dataset"
	"banter/internal/llm"
	"banter/internal/logging"
	"banter/internal/media"
	"banter/internal/metrics"
	"banter/internal/tools"
	"banter/internal/tools/knowledge"
)

// runtime bundles everything a running banter process shares: the model
// client, the media cache, optional archive, and the instance registry
// with its tools wired in.
type runtime struct {
	cfg      *config.Config
	client   *llm.Client
	cache    *media.Cache
	arch     *archive.Archive
	metrics  *metrics.Metrics
	registry *bot.Registry
	watcher  *config.PromptWatcher
}

// buildRuntime wires the process. withMetrics is set by serve; the CLI
// chat has nowhere to expose them.
func buildRuntime(ctx context.Context, withMetrics bool) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := llm.NewClient(cfg.LLM)

	cache, err := media.NewCache(cfg.MediaCacheDir(), media.Options{
		FFmpegPath:      cfg.Media.FFmpegPath,
		FFprobePath:     cfg.Media.FFprobePath,
		StrictAudio:     cfg.Media.StrictAudio,
		MaxAudioSeconds: cfg.Media.MaxAudioSeconds,
		MaxImageDim:     cfg.Media.MaxImageDim,
		JPEGQuality:     cfg.Media.JPEGQuality,
	})
	if err != nil {
		return nil, fmt.Errorf("media cache: %w", err)
	}

	var arch *archive.Archive
	if cfg.Archive.Enabled {
		arch, err = archive.Open(cfg.ArchivePath())
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
	}

	var m *metrics.Metrics
	if withMetrics {
		m = metrics.New()
	}

	prompts, err := cfg.LoadPrompts()
	if err != nil {
		return nil, err
	}

	registry := bot.NewRegistry(bot.RegistryDeps{
		Config:  cfg,
		Client:  client,
		Cache:   cache,
		Archive: arch,
		Metrics: m,
		Prompts: prompts,
	})

	rt := &runtime{
		cfg:      cfg,
		client:   client,
		cache:    cache,
		arch:     arch,
		metrics:  m,
		registry: registry,
	}
	rt.wireTools()

	if cfg.Prompts.Watch {
		watcher, err := config.NewPromptWatcher(cfg, registry.SetPrompts)
		if err != nil {
			logging.Boot("prompt watcher unavailable: %v", err)
		} else if err := watcher.Start(ctx); err != nil {
			logging.Boot("prompt watcher failed to start: %v", err)
		} else {
			rt.watcher = watcher
		}
	}

	return rt, nil
}

// wireTools registers the knowledge tools on the registry. Tools whose
// backing service is unconfigured are left out entirely, so the model
// never sees a function it cannot call.
func (rt *runtime) wireTools() {
	reg := rt.registry

	if g := giphy.NewClient(rt.cfg.Giphy); g.Enabled() {
		reg.RegisterTool(bot.StaticTool(knowledge.GifTool(g)))
	}

	wiki := wikimedia.NewClient(rt.cfg.Wikimedia)
	reg.RegisterTool(bot.StaticTool(knowledge.WikiSearchTool(wiki)))
	reg.RegisterTool(bot.StaticTool(knowledge.WikiPageTool(wiki)))
	reg.RegisterTool(bot.StaticTool(knowledge.WikiQueryTool(wiki, rt.client)))

	if store, err := dataset.NewStore(rt.cfg.DatasetDir()); err == nil {
		reg.RegisterTool(bot.StaticTool(knowledge.LookupTool(store)))
		reg.RegisterTool(bot.StaticTool(knowledge.QueryDatasetTool(store, rt.client)))
	} else {
		logging.Boot("dataset store unavailable: %v", err)
	}

	memTool := func(build func(*agents.MemoryAgent) *tools.Tool) bot.ToolSpec {
		return bot.ToolSpec{Build: func(inst *bot.Instance) *tools.Tool {
			return build(inst.Memory)
		}}
	}
	reg.RegisterTool(memTool(knowledge.RememberTool))
	reg.RegisterTool(memTool(knowledge.RecallMemoryTool))
	reg.RegisterTool(memTool(knowledge.ForgetTool))

	if rt.arch != nil {
		reg.RegisterTool(bot.ToolSpec{Build: func(inst *bot.Instance) *tools.Tool {
			return knowledge.RecallTool(rt.arch, inst.Identity())
		}})
	}
}

// close flushes instances and releases everything the runtime holds.
func (rt *runtime) close(ctx context.Context) {
	if rt.watcher != nil {
		rt.watcher.Stop()
	}
	if err := rt.registry.SaveAll(ctx); err != nil {
		logging.Boot("save on shutdown failed: %v", err)
	}
	if rt.arch != nil {
		if err := rt.arch.Close(); err != nil {
			logging.Boot("archive close failed: %v", err)
		}
	}
}
