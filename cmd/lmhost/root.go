package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lmhost/internal/config"
)

// options carries flag values shared by every subcommand.
type options struct {
	configPath string
	cfg        config.Config
	log        zerolog.Logger
	stderr     io.Writer
	getenv     func(string) string
}

func buildRootCmd() *cobra.Command {
	return buildRootCmdWith(&options{stderr: os.Stderr, getenv: os.Getenv})
}

// buildRootCmdWith constructs the command tree. Configuration is resolved in
// PersistentPreRunE: file, then LMHOST_* environment, then explicit flags.
func buildRootCmdWith(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "lmhost",
		Short:         "Host local language models behind a session API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "Config file (.yaml, .json or .toml)")
	pf.String("log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error")
	pf.String("models-dir", config.DefaultModelsDir, "Directory scanned for *.gguf model files")
	pf.String("default-model", "", "Model used when a request names none")
	pf.String("backend", config.DefaultBackend, "Inference backend: echo|llama")
	pf.Int("input-quota", config.DefaultInputQuota, "Per-session input token quota")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(o, cmd)
		if err != nil {
			return err
		}
		o.cfg = cfg
		lvl, _ := cfg.Level()
		o.log = newLogger(o.stderr, lvl)
		return nil
	}

	root.AddCommand(newServeCmd(o), newModelsCmd(o), newPromptCmd(o))
	return root
}

func resolveConfig(o *options, cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}
	cfg, err := cfg.ApplyEnv(o.getenv)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	str := func(name string, dst *string) {
		if changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("log-level", &cfg.LogLevel)
	str("models-dir", &cfg.ModelsDir)
	str("default-model", &cfg.DefaultModel)
	str("backend", &cfg.Backend)
	str("addr", &cfg.Addr)
	str("max-body", &cfg.MaxBody)
	str("max-wait", &cfg.MaxWait)
	str("infer-timeout", &cfg.InferTimeout)
	if changed("input-quota") {
		cfg.InputQuota, _ = flags.GetInt("input-quota")
	}
	if changed("max-queue-depth") {
		cfg.MaxQueueDepth, _ = flags.GetInt("max-queue-depth")
	}
	if changed("swagger") {
		cfg.Swagger, _ = flags.GetBool("swagger")
	}
	if changed("cors-origins") {
		v, _ := flags.GetString("cors-origins")
		cfg.CORS.Enabled = true
		cfg.CORS.Origins = config.SplitCSV(v)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger writes human-readable output to terminals and JSON otherwise.
func newLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
