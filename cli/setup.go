// Shared construction for CLI commands.
//
// Information Hiding:
// - Provider/config wiring hidden
// - Analyst and engine assembly hidden

package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/richinex/tabula/agent"
	"github.com/richinex/tabula/config"
	"github.com/richinex/tabula/engine"
	"github.com/richinex/tabula/llm"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	Verbose  bool
}

// createProvider builds an LLM provider from options and environment.
func createProvider(settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}
	return providerType.Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		FromEnv()
}

// loadSettings resolves settings for the chosen provider, defaulting
// to openai when none is given.
func loadSettings(opts Options) (config.Settings, error) {
	provider := opts.Provider
	if provider == "" {
		provider = "openai"
	}
	return config.New(provider)
}

// operatorLogger returns a logger for raw diagnostics. Quiet runs
// discard it; verbose runs write to stderr.
func operatorLogger(opts Options) *log.Logger {
	if opts.Verbose {
		return log.New(os.Stderr, "tabula: ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// newAnalyst wires the full stack: analytical engine behind a
// connection cache, and the workflow on top of it.
func newAnalyst(settings config.Settings, opts Options) (*agent.Analyst, error) {
	provider, err := createProvider(settings)
	if err != nil {
		return nil, err
	}

	logger := operatorLogger(opts)
	cache := engine.NewCache(engine.OpenDuckDB(), logger)
	executor := engine.NewExecutor(cache, logger).
		WithQueryTimeout(settings.Analyst.QueryTimeout)

	cfg := agent.Config{
		MaxIterations: settings.Analyst.MaxIterations,
		HistoryWindow: settings.Analyst.HistoryWindow,
		LLMTimeout:    settings.Analyst.LLMTimeout,
	}
	return agent.New(provider, executor, cfg, logger), nil
}

// resolveWorkbook locates a workbook file: an existing path wins,
// otherwise the name is tried under the configured data directory.
func resolveWorkbook(name, dataDir string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	candidate := filepath.Join(dataDir, name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", fmt.Errorf("workbook not found: %s (also tried %s)", name, candidate)
}
