// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medbill/claimscrub/internal/batch"
	"github.com/medbill/claimscrub/internal/claim"
	"github.com/medbill/claimscrub/internal/config"
	"github.com/medbill/claimscrub/internal/corpus/loader"
	"github.com/medbill/claimscrub/internal/llm"
	"github.com/medbill/claimscrub/internal/server"
	"github.com/medbill/claimscrub/internal/suggest"
	"github.com/medbill/claimscrub/internal/tool"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "claimscrub",
		Short:        "Suggest scrubbing edits for professional medical claims",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(mcpCmd(&configPath))
	rootCmd.AddCommand(suggestCmd(&configPath))
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(retrieveCmd(&configPath))
	rootCmd.AddCommand(batchCmd(&configPath))
	return rootCmd
}

// app is everything a command needs after startup.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	svc    *suggest.Service
}

func setup(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := cfg.NewLogger(os.Stderr)

	result, err := loader.Load(ctx, cfg.Corpus, loader.Options{Region: cfg.CorpusRegion})
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	rules, exemplars := result.Corpus.Len()
	logger.Info().
		Str("corpus", cfg.Corpus).
		Str("parser", result.ParserUsed).
		Int("rules", rules).
		Int("exemplars", exemplars).
		Msg("corpus loaded")

	svc := suggest.NewService(result.Corpus, cfg.LLM, suggest.WithLogger(logger))
	return &app{cfg: cfg, logger: logger, svc: svc}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP suggestion server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			if rt.cfg.LLM.APIKey == "" {
				rt.logger.Warn().Str("env", llm.KeyEnv(rt.cfg.LLM.Provider)).Msg("completion model API key is not set; suggestions will fail")
			}

			return server.New(rt.svc, rt.cfg, rt.logger).Run(ctx, rt.cfg.Addr)
		},
	}
}

func mcpCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the scrubbing tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			return tool.NewServer(rt.svc, version).Run(ctx, &mcp.StdioTransport{})
		},
	}
}

func suggestCmd(configPath *string) *cobra.Command {
	var (
		file      string
		payerID   string
		specialty string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest edits for one claim file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}

			data, err := readFileOrStdin(file)
			if err != nil {
				return err
			}
			payload, err := claim.Parse(data)
			if err != nil {
				return err
			}

			suggestion, err := rt.svc.Suggest(ctx, suggest.Request{PayerID: payerID, Specialty: specialty, Claim: payload})
			if err != nil {
				se := suggest.AsError(err)
				_ = writeJSON("-", se.Body())
				return fmt.Errorf("suggestion failed with HTTP %d", se.HTTPStatus())
			}
			return writeJSON(output, suggestion)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Claim JSON file, or - for stdin")
	cmd.Flags().StringVar(&payerID, "payer", "", "Payer id for retrieval (default: the claim's tradingPartnerId)")
	cmd.Flags().StringVar(&specialty, "specialty", "", "Specialty for retrieval (default: primary_care)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file, or - for stdout")
	return cmd
}

func validateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a claim file without calling the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readFileOrStdin(file)
			if err != nil {
				return err
			}
			if _, err := claim.Parse(data); err != nil {
				return fmt.Errorf("claim is invalid: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "claim is valid")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Claim JSON file, or - for stdin")
	return cmd
}

func retrieveCmd(configPath *string) *cobra.Command {
	var payerID, specialty string

	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Print the rules and exemplars scoped to a payer and specialty",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			return writeJSON("-", rt.svc.Retrieve(payerID, specialty))
		},
	}
	cmd.Flags().StringVar(&payerID, "payer", "", "Payer id")
	cmd.Flags().StringVar(&specialty, "specialty", "", "Specialty (default: primary_care)")
	return cmd
}

func batchCmd(configPath *string) *cobra.Command {
	var (
		inputDir   string
		outputDir  string
		workers    int
		compress   bool
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Scrub every claim file in a directory",
		Long: `Scrub every *.json and *.json.gz claim file in a directory concurrently.
Each input produces <name>.suggestion.json, or <name>.error.json when the
claim is rejected or the completion model fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputDir == "" {
				return fmt.Errorf("--input is required")
			}
			if outputDir == "" {
				outputDir = inputDir
			}

			ctx, cancel := signalContext()
			defer cancel()

			rt, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}

			files, err := batch.Discover(inputDir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no claim files found in %s", inputDir)
			}

			var progress batch.Progress
			if noProgress {
				progress = &batch.LogProgress{Logger: rt.logger, Total: len(files)}
			} else {
				progress = batch.NewBarProgress(os.Stderr, len(files))
			}

			startTime := time.Now()
			runner := &batch.Runner{
				Suggester: rt.svc,
				Workers:   workers,
				OutDir:    outputDir,
				Compress:  compress,
				Progress:  progress,
				Logger:    rt.logger,
			}
			results, err := runner.Run(ctx, files)
			if err != nil {
				return err
			}

			summary := batch.Summarize(results)
			rt.logger.Info().
				Int("total", summary.Total).
				Int("succeeded", summary.Succeeded).
				Int("fallbacks", summary.Fallbacks).
				Int("failed", summary.Failed).
				Dur("duration", time.Since(startTime)).
				Msg("batch complete")
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d claims failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "Directory of claim files")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default: the input directory)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of concurrent completion requests")
	cmd.Flags().BoolVar(&compress, "compress", false, "Write gzip-compressed outputs")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Log per-file progress instead of a progress bar")
	return cmd
}

func readFileOrStdin(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// writeJSON writes v as indented JSON. "-" means stdout.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}

	if path == "-" {
		_, err = os.Stdout.Write(data)
		fmt.Fprintln(os.Stdout)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
