package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"lmhost/internal/languagemodel"
	"lmhost/pkg/types"
)

type promptFlags struct {
	model       string
	system      string
	schemaPath  string
	temperature float64
	topK        int
	stream      bool
}

func newPromptCmd(o *options) *cobra.Command {
	var pf promptFlags
	cmd := &cobra.Command{
		Use:     "prompt [text]",
		Short:   "Run one prompt in-process and print the completion",
		Example: "  lmhost prompt --model gemma-nano \"Write a haiku\"\n  echo hello | lmhost prompt --stream",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = strings.TrimSpace(string(b))
			}
			if text == "" {
				return fmt.Errorf("prompt text is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runPrompt(ctx, o, pf, text, cmd.Flags().Changed("temperature"), cmd.Flags().Changed("top-k"), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&pf.model, "model", "", "Model id (defaults to the configured default model)")
	f.StringVar(&pf.system, "system", "", "System prompt")
	f.StringVar(&pf.schemaPath, "schema", "", "JSON Schema file the reply must satisfy")
	f.Float64Var(&pf.temperature, "temperature", 0, "Sampling temperature")
	f.IntVar(&pf.topK, "top-k", 0, "Top-K sampling")
	f.BoolVar(&pf.stream, "stream", false, "Print chunks as they are generated")
	return cmd
}

func runPrompt(ctx context.Context, o *options, pf promptFlags, text string, setTemp, setTopK bool, out, errOut io.Writer) error {
	st, err := newStack(o.cfg, o.log)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := languagemodel.CreateOptions{
		Model: pf.model,
		Monitor: func(p languagemodel.DownloadProgress) {
			if p.Loaded > 0 && p.Loaded < 1 {
				fmt.Fprintf(errOut, "\rdownloading %3.0f%%", p.Loaded*100)
			} else if p.Loaded == 1 && p.Total > 0 {
				fmt.Fprintln(errOut, "\rdownloaded       ")
			}
		},
	}
	if setTemp {
		opts.Temperature = &pf.temperature
	}
	if setTopK {
		opts.TopK = &pf.topK
	}
	if pf.system != "" {
		opts.InitialPrompts = []types.Message{{Role: types.RoleSystem, Parts: []types.ContentPart{types.TextPart(pf.system)}}}
	}
	var popts languagemodel.PromptOptions
	if pf.schemaPath != "" {
		if popts.ResponseConstraint, err = os.ReadFile(pf.schemaPath); err != nil {
			return fmt.Errorf("read schema: %w", err)
		}
	}

	sess, err := st.svc.Create(ctx, opts)
	if err != nil {
		return err
	}
	defer sess.Destroy()

	if !pf.stream {
		reply, err := sess.Prompt(ctx, languagemodel.Text(text), popts)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply)
	} else {
		stream, err := sess.PromptStreaming(ctx, languagemodel.Text(text), popts)
		if err != nil {
			return err
		}
		for chunk, err := range stream.All() {
			if err != nil {
				return err
			}
			fmt.Fprint(out, chunk)
		}
		fmt.Fprintln(out)
	}
	o.log.Debug().Int("input_usage", sess.InputUsage()).Int("input_quota", sess.InputQuota()).Msg("prompt done")
	return nil
}
