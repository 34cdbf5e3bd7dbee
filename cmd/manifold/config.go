package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/manifold-agent/manifold"
	"github.com/manifold-agent/manifold/internal/logging"
	"github.com/manifold-agent/manifold/pkg/adapters/a2a"
	"github.com/manifold-agent/manifold/pkg/adapters/openai"
)

// Config is the on-disk agent configuration (manifold.yaml).
type Config struct {
	Model struct {
		APIKey      string  `yaml:"api_key"` // empty means $OPENAI_API_KEY
		BaseURL     string  `yaml:"base_url"`
		Name        string  `yaml:"name"`
		Temperature float32 `yaml:"temperature"`
		Stream      bool    `yaml:"stream"`
	} `yaml:"model"`

	SystemMessage string `yaml:"system_message"`
	MaxRounds     int    `yaml:"max_rounds"`

	Providers struct {
		Stdio []struct {
			Command string   `yaml:"command"`
			Args    []string `yaml:"args"`
		} `yaml:"stdio"`
		SSE            []string `yaml:"sse"`
		StreamableHTTP []string `yaml:"streamable_http"`
	} `yaml:"providers"`

	Peers []string `yaml:"peers"`

	Serve struct {
		Addr string        `yaml:"addr"`
		Card a2a.AgentCard `yaml:"card"`
	} `yaml:"serve"`
}

// LoadConfig reads and decodes a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = "gpt-4o"
	}
	if cfg.Serve.Addr == "" {
		cfg.Serve.Addr = ":8484"
	}
	return cfg, nil
}

func loggerFromFlags(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logging.New(logging.ParseLevel(level))
}

// buildAgent assembles a ready agent from the config file and flags.
func buildAgent(cmd *cobra.Command, extra ...manifold.Option) (*manifold.Agent, Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, Config{}, err
	}
	logger := loggerFromFlags(cmd)

	opts := []manifold.Option{
		manifold.WithLogger(logger),
		manifold.WithSystemMessage(cfg.SystemMessage),
		manifold.WithMaxRounds(cfg.MaxRounds),
		manifold.WithOpenAI(openai.Config{
			APIKey:      cfg.Model.APIKey,
			BaseURL:     cfg.Model.BaseURL,
			Model:       cfg.Model.Name,
			Temperature: cfg.Model.Temperature,
			Stream:      cfg.Model.Stream,
		}),
	}
	for _, s := range cfg.Providers.Stdio {
		opts = append(opts, manifold.WithStdioServer(s.Command, s.Args...))
	}
	opts = append(opts,
		manifold.WithSSEServers(cfg.Providers.SSE...),
		manifold.WithStreamableHTTPServers(cfg.Providers.StreamableHTTP...),
		manifold.WithPeers(cfg.Peers...),
	)
	opts = append(opts, extra...)

	agent, err := manifold.New(cmd.Context(), opts...)
	if err != nil {
		return nil, Config{}, err
	}
	return agent, cfg, nil
}
