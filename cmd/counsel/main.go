// Command counsel is the CLI for the decision counsel engine: ingest
// doctrine books, ask for counsel in quick/normal/war mode, and resolve
// outcomes so the engine can learn from them.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	counsel "github.com/counselengine/counsel"
	"github.com/counselengine/counsel/llm"
)

const (
	exitOK          = 0
	exitInvalidArgs = 2
	exitBlocked     = 3
)

// exitError carries an explicit process exit code up through cobra's
// RunE chain.
type exitError struct {
	code int
	msg  string
}

func (e exitError) Error() string { return e.msg }

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	})))

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			if ee.msg != "" {
				fmt.Fprintln(os.Stderr, ee.msg)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInvalidArgs)
	}
}

func logLevel() slog.Level {
	if os.Getenv("COUNSEL_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "counsel",
		Short:         "decision counsel engine",
		Long:          "counsel ingests doctrine books and deliberates on decision questions through a permissioned council of ministers.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("data-dir", "", "data directory (default ~/.counsel, env DATA_DIR)")
	root.PersistentFlags().String("llm-endpoint", "", "LLM endpoint base URL (env LLM_ENDPOINT)")
	root.PersistentFlags().String("embed-model", "", "embedding model name (env EMBED_MODEL)")
	root.PersistentFlags().Int("embed-concurrency", 0, "max concurrent embedding calls (env EMBED_CONCURRENCY)")

	viper.BindPFlag("data_dir", root.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("llm_endpoint", root.PersistentFlags().Lookup("llm-endpoint"))
	viper.BindPFlag("embed_model", root.PersistentFlags().Lookup("embed-model"))
	viper.BindPFlag("embed_concurrency", root.PersistentFlags().Lookup("embed-concurrency"))
	viper.BindEnv("data_dir", "DATA_DIR")
	viper.BindEnv("llm_endpoint", "LLM_ENDPOINT")
	viper.BindEnv("embed_model", "EMBED_MODEL")
	viper.BindEnv("embed_concurrency", "EMBED_CONCURRENCY")

	root.AddCommand(newCounselCmd())
	root.AddCommand(newOutcomeCmd())
	root.AddCommand(newIngestCmd())
	root.AddCommand(newStatusCmd())
	return root
}

// loadConfig overlays the defaults with flag and environment values.
func loadConfig() counsel.Config {
	cfg := counsel.DefaultConfig()
	if v := viper.GetString("data_dir"); v != "" {
		cfg.DataDir = v
	}
	if v := viper.GetString("llm_endpoint"); v != "" {
		cfg.Reasoning.BaseURL = v
		cfg.Embedding.BaseURL = v
	}
	if v := viper.GetString("embed_model"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := viper.GetInt("embed_concurrency"); v > 0 {
		cfg.EmbedConcurrency = v
	}
	applyProviderEnv(&cfg.Reasoning, "COUNSEL_REASONING")
	applyProviderEnv(&cfg.Embedding, "COUNSEL_EMBEDDING")
	return cfg
}

// applyProviderEnv lets COUNSEL_REASONING_PROVIDER-style variables
// override a provider block without a config file.
func applyProviderEnv(c *llm.Config, prefix string) {
	if v := os.Getenv(prefix + "_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(prefix + "_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv(prefix + "_API_KEY"); v != "" {
		c.APIKey = v
	}
}

// openEngine builds the engine, translating construction failures to the
// invalid-arguments exit code.
func openEngine() (*counsel.Engine, error) {
	eng, err := counsel.New(loadConfig())
	if err != nil {
		return nil, exitError{code: exitInvalidArgs, msg: err.Error()}
	}
	return eng, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
