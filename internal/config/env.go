package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix namespaces environment overrides, e.g. LMHOST_ADDR.
const EnvPrefix = "LMHOST_"

// ApplyEnv overlays LMHOST_* variables read through getenv onto c.
// Unset or empty variables leave the field alone.
func (c Config) ApplyEnv(getenv func(string) string) (Config, error) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(EnvPrefix + key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v := strings.TrimSpace(getenv(EnvPrefix + key))
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("ADDR", &c.Addr)
	str("MODELS_DIR", &c.ModelsDir)
	str("DEFAULT_MODEL", &c.DefaultModel)
	str("MAX_WAIT", &c.MaxWait)
	str("MAX_BODY", &c.MaxBody)
	str("INFER_TIMEOUT", &c.InferTimeout)
	str("LOG_LEVEL", &c.LogLevel)
	str("BACKEND", &c.Backend)
	for key, dst := range map[string]*int{
		"INPUT_QUOTA":     &c.InputQuota,
		"STREAM_BUFFER":   &c.StreamBuffer,
		"MAX_QUEUE_DEPTH": &c.MaxQueueDepth,
		"LLAMA_CTX":       &c.LlamaCtx,
		"LLAMA_THREADS":   &c.LlamaThreads,
	} {
		if err := num(key, dst); err != nil {
			return c, err
		}
	}
	if err := flag("SWAGGER", &c.Swagger); err != nil {
		return c, err
	}
	if err := flag("CORS_ENABLED", &c.CORS.Enabled); err != nil {
		return c, err
	}
	if v := getenv(EnvPrefix + "CORS_ORIGINS"); v != "" {
		c.CORS.Origins = SplitCSV(v)
	}
	return c, nil
}

// SplitCSV splits a comma-separated list, trimming spaces and dropping empties.
func SplitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
