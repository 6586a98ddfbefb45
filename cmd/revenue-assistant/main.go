// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the revenue-assistant CLI.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/revenue-assistant/internal/logging"
	"github.com/pdiddy/revenue-assistant/internal/secrets"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// rootCmd is the base command for the revenue-assistant CLI.
var rootCmd = &cobra.Command{
	Use:   "revenue-assistant",
	Short: "Answer NSW state tax questions from cited legislation",
	Long: `revenue-assistant answers questions about NSW state taxes, duties, levies,
grants and royalties. Each question is classified, relevant legislation is
retrieved from the configured corpora, an answer is drafted with citations,
and a reviewer approves or flags it.

Use "corpus load" to index the legislation directory before asking questions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(viper.GetString("log.level"))
		if err != nil {
			return err
		}
		logging.Init(level, viper.GetString("log.format"))

		s, err := secrets.Load(viper.GetString("secrets_dir"))
		if err != nil {
			return err
		}
		loadedSecrets = s
		if keys := s.Keys(); len(keys) > 0 {
			logging.New("cli").Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./revenue-assistant.yaml or ~/.config/revenue-assistant/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of API key files")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("secrets_dir", rootCmd.PersistentFlags().Lookup("secrets-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("revenue-assistant")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "revenue-assistant"))
		}
	}

	if err := setDefaults(viper.GetViper(), types.DefaultConfig()); err != nil {
		fmt.Fprintln(os.Stderr, "Setting config defaults:", err)
	}

	viper.SetEnvPrefix("REVENUE_ASSISTANT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key of def with v so that environment
// variables can override keys absent from the config file.
func setDefaults(v *viper.Viper, def types.Config) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return err
	}
	setFlattened(v, "", m)

	// omitempty keys that must still be reachable from the environment.
	for _, key := range []string{"ai.api_key", "corpora.external.api_key", "pipeline.category_filter"} {
		v.SetDefault(key, "")
	}
	return nil
}

func setFlattened(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setFlattened(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig decodes the effective configuration and fills API keys from
// the loaded secrets.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Pipeline.ApplyDefaults()

	if cfg.AI.APIKey == "" {
		switch cfg.AI.Provider {
		case types.ProviderOpenAI:
			cfg.AI.APIKey = loadedSecrets.Get(secrets.OpenAIAPIKey)
		default:
			cfg.AI.APIKey = loadedSecrets.Get(secrets.AnthropicAPIKey)
		}
	}
	if cfg.Corpora.External.APIKey == "" {
		cfg.Corpora.External.APIKey = loadedSecrets.Get(secrets.LiveSourceAPIKey)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
