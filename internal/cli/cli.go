// Package cli implements studioctl, the terminal host for the generation console.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"studio/internal/domain"
	"studio/internal/generation"
	"studio/internal/infra"
	"studio/internal/providers/acestep"
)

const version = "1.0.0"

type globalOptions struct {
	baseURL      string
	pollInterval time.Duration
	verbose      bool
}

// BuildCLI assembles the studioctl command tree.
func BuildCLI() *cobra.Command {
	g := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:           "studioctl",
		Short:         "Submit and follow music generation jobs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.baseURL, "base-url", "", "generation backend URL (default $ACESTEP_BASE_URL)")
	rootCmd.PersistentFlags().DurationVar(&g.pollInterval, "poll-interval", 0, "status poll interval (default $POLL_INTERVAL_MS)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "write diagnostic logs to stderr")

	rootCmd.AddCommand(buildGenerateCommand(g))
	rootCmd.AddCommand(buildStatusCommand(g))
	rootCmd.AddCommand(buildHistoryCommand(g))
	return rootCmd
}

// load reads configuration and applies flag overrides.
func (g *globalOptions) load(errOut io.Writer) (*infra.Config, infra.Logger, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, infra.Logger{}, err
	}
	if g.baseURL != "" {
		cfg.BackendBaseURL = strings.TrimRight(g.baseURL, "/")
	}
	if g.pollInterval > 0 {
		cfg.PollInterval = g.pollInterval
	}
	logger := *infra.DiscardLogger()
	if g.verbose {
		logger = infra.NewCLILogger(cfg.AppEnv, errOut)
	}
	return cfg, logger, nil
}

func newBackend(cfg *infra.Config, logger infra.Logger) (*acestep.Client, error) {
	return acestep.NewClient(acestep.Options{
		BaseURL:        cfg.BackendBaseURL,
		RequestTimeout: cfg.BackendTimeout,
		Logger:         &logger,
	})
}

type generateFlags struct {
	prompt     string
	lyrics     string
	lyricsFile string
	duration   float64
	steps      int
	guidance   float64
	seed       int64
	format     string
	cfgType    string
	scheduler  string
	preset     string
	follow     bool
}

func buildGenerateCommand(g *globalOptions) *cobra.Command {
	f := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Submit a generation job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(cmd)
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), g, req, f.follow)
		},
	}
	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", "", "style prompt")
	cmd.Flags().StringVar(&f.lyrics, "lyrics", "", "lyrics with [verse]/[chorus] section tags")
	cmd.Flags().StringVar(&f.lyricsFile, "lyrics-file", "", "read lyrics from a file")
	cmd.Flags().Float64VarP(&f.duration, "duration", "d", 0, "length in seconds (10-240)")
	cmd.Flags().IntVar(&f.steps, "steps", 0, "inference steps (10-200)")
	cmd.Flags().Float64Var(&f.guidance, "guidance", 0, "guidance scale (1-30)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed; omitted lets the backend choose")
	cmd.Flags().StringVar(&f.format, "format", "", "output format: wav, mp3, flac, ogg")
	cmd.Flags().StringVar(&f.cfgType, "cfg-type", "", "classifier-free guidance type")
	cmd.Flags().StringVar(&f.scheduler, "scheduler", "", "scheduler type")
	cmd.Flags().StringVar(&f.preset, "preset", "", "YAML preset supplying defaults")
	cmd.Flags().BoolVarP(&f.follow, "follow", "f", false, "follow the console until the job finishes")
	return cmd
}

// request merges the preset, if any, with the flags the user set.
func (f *generateFlags) request(cmd *cobra.Command) (domain.GenerationRequest, error) {
	var base domain.GenerationRequest
	if f.preset != "" {
		preset, err := generation.LoadPreset(f.preset)
		if err != nil {
			return domain.GenerationRequest{}, err
		}
		base = preset.Request
	}

	lyrics := f.lyrics
	if f.lyricsFile != "" {
		raw, err := os.ReadFile(f.lyricsFile)
		if err != nil {
			return domain.GenerationRequest{}, fmt.Errorf("read lyrics: %w", err)
		}
		lyrics = string(raw)
	}

	override := domain.GenerationRequest{
		Prompt:        f.prompt,
		Lyrics:        lyrics,
		Duration:      f.duration,
		InferSteps:    f.steps,
		GuidanceScale: f.guidance,
		Format:        domain.OutputFormat(f.format),
		CFGType:       f.cfgType,
		SchedulerType: f.scheduler,
	}
	if cmd.Flags().Changed("seed") {
		seed := f.seed
		override.Seed = &seed
	}
	return generation.Overlay(base, override), nil
}

func runGenerate(ctx context.Context, out, errOut io.Writer, g *globalOptions, req domain.GenerationRequest, follow bool) error {
	cfg, logger, err := g.load(errOut)
	if err != nil {
		return err
	}
	backend, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}

	if !follow {
		builder, err := generation.NewBuilder(generation.Options{Backend: backend, Logger: &logger})
		if err != nil {
			return err
		}
		handle, err := builder.Submit(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, handle.JobID)
		return nil
	}

	s, err := openSession(ctx, cfg, backend, logger)
	if err != nil {
		return err
	}
	defer s.close()

	handle, err := s.console.Submit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(errOut, "submitted job %s\n", handle.JobID)
	return followConsole(ctx, out, s.console)
}

func buildStatusCommand(g *globalOptions) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show or follow the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), g, args[0], follow)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow the console until the job finishes")
	return cmd
}

func runStatus(ctx context.Context, out, errOut io.Writer, g *globalOptions, jobID string, follow bool) error {
	cfg, logger, err := g.load(errOut)
	if err != nil {
		return err
	}
	backend, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}

	if !follow {
		snap, err := backend.Status(ctx, jobID)
		if err != nil {
			return err
		}
		printSnapshot(out, snap)
		return nil
	}

	s, err := openSession(ctx, cfg, backend, logger)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.console.Adopt(domain.JobHandle{JobID: jobID, SubmittedAt: time.Now()}); err != nil {
		return err
	}
	return followConsole(ctx, out, s.console)
}

func buildHistoryCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List files produced by the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			backend, err := newBackend(cfg, logger)
			if err != nil {
				return err
			}
			files, err := backend.History(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "no generations yet")
				return nil
			}
			for _, name := range files {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}
