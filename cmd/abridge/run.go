package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/bookforge/abridge/internal/codec"
	"github.com/bookforge/abridge/internal/condense"
	"github.com/bookforge/abridge/internal/config"
	"github.com/bookforge/abridge/internal/home"
	"github.com/bookforge/abridge/internal/pipeline"
	"github.com/bookforge/abridge/internal/providers"
)

var (
	runProvider      string
	runMinRatio      int
	runMaxRatio      int
	runChunkSize     int
	runRetries       int
	runMinUnitLength int
	runWorkers       int
	runUnitWorkers   int
	runForce         bool
	runQuiet         bool
)

var runCmd = &cobra.Command{
	Use:   "run <source> <output>",
	Short: "Condense a document into a shorter one",
	Long: `Run the condensation pipeline against one source document.

The source may be an EPUB, a PDF, a plain-text file, or a directory of
chapter text files. The output format follows the output path: .epub for
an EPUB, .txt for a single text file, anything else for a chapter
directory.

Flags override the corresponding config file settings for this run only.`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		sourcePath, outPath := args[0], args[1]

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		// Settings are captured at run start; a mid-run edit takes effect
		// on the next invocation.
		cm.OnChange(func(*config.Config) {
			slog.Info("config file changed, new settings apply to the next run")
		})
		cm.WatchConfig()

		dir, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := dir.EnsureExists(); err != nil {
			return err
		}

		registry, err := providers.NewRegistry(cfg.ToProviderRegistryConfig())
		if err != nil {
			return err
		}

		providerName := runProvider
		if providerName == "" {
			providerName = registry.DefaultName()
		}
		client, err := registry.Get(providerName)
		if err != nil {
			return err
		}

		settings := cfg.Condense
		if cmd.Flags().Changed("min-ratio") {
			settings.MinRatioPct = runMinRatio
		}
		if cmd.Flags().Changed("max-ratio") {
			settings.MaxRatioPct = runMaxRatio
		}
		if cmd.Flags().Changed("chunk-size") {
			settings.MaxChunkSize = runChunkSize
		}
		if cmd.Flags().Changed("retries") {
			settings.MaxRetries = runRetries
		}
		if cmd.Flags().Changed("min-unit-length") {
			settings.MinUnitLength = runMinUnitLength
		}
		if runForce {
			settings.ForceRegenerate = true
		}

		maxWorkers := cfg.Defaults.MaxWorkers
		if cmd.Flags().Changed("workers") {
			maxWorkers = runWorkers
		}
		if maxWorkers <= 0 {
			maxWorkers = 1
		}

		logger := slog.Default().With("provider", providerName)

		// One semaphore for the whole run: chunk concurrency is capped
		// globally, not per unit.
		condenser, err := condense.New(condense.Options{
			Client:        client,
			Limiter:       registry.Limiter(providerName),
			Logger:        logger,
			Semaphore:     semaphore.NewWeighted(int64(maxWorkers)),
			MinRatioPct:   settings.MinRatioPct,
			MaxRatioPct:   settings.MaxRatioPct,
			MaxChunkSize:  settings.MaxChunkSize,
			MaxRetries:    settings.MaxRetries,
			MinUnitLength: settings.MinUnitLength,
		})
		if err != nil {
			return err
		}

		reader, err := codec.ReaderFor(sourcePath)
		if err != nil {
			return err
		}
		writer, err := codec.WriterFor(outPath)
		if err != nil {
			return err
		}

		var progress pipeline.ProgressFunc
		if !runQuiet {
			progress = func(percent int, message string) {
				fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", percent, message)
			}
		}

		p, err := pipeline.New(pipeline.Options{
			Reader:          reader,
			Writer:          writer,
			Condenser:       condenser,
			Home:            dir,
			Logger:          logger,
			Progress:        progress,
			MaxUnitWorkers:  runUnitWorkers,
			ForceRegenerate: settings.ForceRegenerate,
		})
		if err != nil {
			return err
		}

		report, err := p.Run(cmd.Context(), sourcePath, outPath)
		if err != nil {
			return err
		}

		fmt.Printf("Condensed %d units (%d ok, %d degraded, %d cached) -> %s\n",
			report.Total, report.Succeeded, report.Failed, report.Skipped, outPath)
		if report.Degraded() {
			fmt.Println("Some units kept their original text:")
			for _, msg := range report.Errors {
				fmt.Printf("  - %s\n", msg)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runProvider, "provider", "", "LLM provider to use (default: config default)")
	runCmd.Flags().IntVar(&runMinRatio, "min-ratio", 0, "minimum output length, percent of source")
	runCmd.Flags().IntVar(&runMaxRatio, "max-ratio", 0, "maximum output length, percent of source")
	runCmd.Flags().IntVar(&runChunkSize, "chunk-size", 0, "maximum characters per work unit")
	runCmd.Flags().IntVar(&runRetries, "retries", 0, "length-contract retries per work unit")
	runCmd.Flags().IntVar(&runMinUnitLength, "min-unit-length", 0, "units below this length pass through unchanged")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "global cap on concurrent LLM calls")
	runCmd.Flags().IntVar(&runUnitWorkers, "unit-workers", 2, "units processed concurrently")
	runCmd.Flags().BoolVar(&runForce, "force", false, "ignore cached unit artifacts")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "suppress progress output")
}
