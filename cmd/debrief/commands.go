package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/debrief/internal/analytics"
	"github.com/kalambet/debrief/internal/config"
	"github.com/kalambet/debrief/internal/drafter"
	"github.com/kalambet/debrief/internal/extract"
	"github.com/kalambet/debrief/internal/ledger"
	"github.com/kalambet/debrief/internal/ollama"
	"github.com/kalambet/debrief/internal/outputs"
	"github.com/kalambet/debrief/internal/pipeline"
	"github.com/kalambet/debrief/internal/storage"
	"github.com/kalambet/debrief/internal/summarizer"
	"github.com/kalambet/debrief/internal/transcript"
)

// buildRunner wires the pipeline from config. store may be nil, in which
// case run history is not recorded.
func buildRunner(cfg config.Config, client *ollama.Client, store *storage.Store) *pipeline.Runner {
	model := cfg.Ollama.Model
	deps := pipeline.Deps{
		Reader:    transcript.NewSource(cfg.Paths.TranscriptsDir),
		Summarize: summarizer.New(client, model),
		Draft:     drafter.New(client, model),
		Extract:   extract.New(client, model),
		Ledger:    ledger.NewStore(cfg.Paths.LedgerPath),
		Artifacts: outputs.NewStore(cfg.Paths.OutputDir),
		Analytics: analytics.NewLog(cfg.Paths.AnalyticsPath),
	}
	if store != nil {
		deps.Recorder = store
	}
	return pipeline.NewRunner(deps, cfg.Ollama.ChatTimeout())
}

// --- process ---

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the pipeline on a meeting transcript",
	Long: `Run the full pipeline on a meeting transcript: summarize, draft the
follow-up email, extract contract fields, update the ledger, and write the
output files.

Without --file, the most recent transcript that has not been processed yet
is picked. --force reprocesses even if a completed run exists.

Examples:
  debrief process
  debrief process --file Acme_20250503.txt
  debrief process --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fileName, _ := cmd.Flags().GetString("file")
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		client := ollama.New(cfg.Ollama.BaseURL)
		if err := ollama.EnsureReady(ctx, client, cfg.Ollama.Model, 30*time.Second, os.Stderr); err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening run store: %w", err)
		}
		defer store.Close()

		source := transcript.NewSource(cfg.Paths.TranscriptsDir)
		file, err := pickTranscript(source, store, fileName, force)
		if err != nil {
			return err
		}
		if file == nil {
			printWarning("Nothing to process: all transcripts already have completed runs. Use --force to rerun.")
			return nil
		}

		printStep("Processing %s (%s, %s)", file.Name, file.Key.Client, file.Key.DateISO())

		runner := buildRunner(cfg, client, store)
		st, err := runner.Run(ctx, *file)
		if err != nil {
			return err
		}

		printSuccess("Summary: %s", st.SummaryPath)
		printSuccess("Email: %s", st.EmailPath)
		printSuccess("Ledger updated for %s / %s", st.Key().Client, st.Key().DateISO())
		printStatus("Run", "%s (%dms)", st.RunID, st.TotalDuration().Milliseconds())
		return nil
	},
}

// pickTranscript resolves which file to process. Returns nil when every
// transcript has already been processed and neither a name nor --force was
// given.
func pickTranscript(source *transcript.Source, store *storage.Store, name string, force bool) (*transcript.File, error) {
	if name != "" {
		f, err := source.ByName(name)
		if err != nil {
			return nil, err
		}
		if !force {
			done, err := store.HasProcessed(f.Name)
			if err != nil {
				return nil, fmt.Errorf("checking run history: %w", err)
			}
			if done {
				return nil, fmt.Errorf("%s already processed; use --force to rerun", f.Name)
			}
		}
		return &f, nil
	}

	files, err := source.List()
	if err != nil {
		return nil, err
	}

	// Newest first.
	for i := len(files) - 1; i >= 0; i-- {
		if force {
			return &files[i], nil
		}
		done, err := store.HasProcessed(files[i].Name)
		if err != nil {
			return nil, fmt.Errorf("checking run history: %w", err)
		}
		if !done {
			return &files[i], nil
		}
	}
	return nil, nil
}

func init() {
	processCmd.Flags().String("file", "", "transcript file name to process")
	processCmd.Flags().Bool("force", false, "reprocess even if a completed run exists")
}

// --- transcripts ---

var transcriptsCmd = &cobra.Command{
	Use:   "transcripts",
	Short: "List transcripts and their processed state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening run store: %w", err)
		}
		defer store.Close()

		source := transcript.NewSource(cfg.Paths.TranscriptsDir)
		files, err := source.List()
		if errors.Is(err, transcript.ErrNoTranscripts) {
			fmt.Printf("No transcripts found in %s\n", cfg.Paths.TranscriptsDir)
			return nil
		}
		if err != nil {
			return err
		}

		for _, f := range files {
			state := "pending"
			done, err := store.HasProcessed(f.Name)
			if err != nil {
				return fmt.Errorf("checking run history: %w", err)
			}
			if done {
				state = colorize(colorGreen, "processed")
			}
			fmt.Printf("%s  %s  %s  %s\n",
				f.Key.DateISO(),
				colorize(colorBold, f.Key.Client),
				f.Name,
				state,
			)
		}
		return nil
	},
}

// --- contracts ---

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "Read the contract ledger",
}

var contractsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all contract records",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		records, err := ledger.NewStore(cfg.Paths.LedgerPath).List()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No contract records yet.")
			return nil
		}

		for _, r := range records {
			budget := r.Budget
			if budget == "" {
				budget = "-"
			}
			fmt.Printf("%s  %s  %s\n", r.Date, colorize(colorBold, r.Client), budget)
		}
		return nil
	},
}

var contractsShowCmd = &cobra.Command{
	Use:   "show <client> <date>",
	Short: "Show one contract record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		rec, err := ledger.NewStore(cfg.Paths.LedgerPath).Get(args[0], args[1])
		if errors.Is(err, ledger.ErrNotFound) {
			return fmt.Errorf("no contract for %s on %s", args[0], args[1])
		}
		if err != nil {
			return err
		}

		printStatus("Client", "%s", rec.Client)
		printStatus("Date", "%s", rec.Date)
		printStatus("Budget", "%s", orDash(rec.Budget))
		printStatus("Timeline", "%s", orDash(rec.Timeline))
		printStatus("Scope", "%s", orDash(strings.Join(rec.ScopeItems, ", ")))
		printStatus("Milestones", "%s", orDash(strings.Join(rec.MilestoneDates, ", ")))
		printStatus("Contacts", "%s", orDash(strings.Join(rec.Contacts, ", ")))
		printStatus("Ingested", "%s", rec.IngestedAt.Format(time.RFC3339))
		return nil
	},
}

// shortID abbreviates a run ID for listing. IDs are uuids in practice, but
// the database can hold anything.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	contractsCmd.AddCommand(contractsListCmd)
	contractsCmd.AddCommand(contractsShowCmd)
}

// --- analytics ---

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show recent pipeline analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		entries, err := analytics.NewLog(cfg.Paths.AnalyticsPath).ReadAll()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No analytics entries yet.")
			return nil
		}

		if limit > 0 && len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
		for _, e := range entries {
			outcome := colorize(colorGreen, "ok")
			if !e.Success {
				outcome = colorize(colorRed, "failed")
			}
			fmt.Printf("%s  %s/%s  %dms  %s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"),
				e.Client, e.Date, e.TotalMs, outcome,
			)
			if e.Error != "" {
				fmt.Printf("    %s\n", e.Error)
			}
		}
		return nil
	},
}

func init() {
	analyticsCmd.Flags().Int("limit", 20, "maximum number of entries to show")
}

// --- runs ---

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening run store: %w", err)
		}
		defer store.Close()

		runs, err := store.ListRuns(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs yet.")
			return nil
		}

		for _, r := range runs {
			status := colorize(colorGreen, r.Status)
			if r.Status == storage.StatusFailed {
				status = colorize(colorRed, r.Status)
			}
			fmt.Printf("%s  %s  %s  %s\n",
				colorize(colorCyan, shortID(r.ID)),
				r.CreatedAt.Format("2006-01-02 15:04:05"),
				r.File,
				status,
			)
			if r.Error != "" {
				fmt.Printf("    %s\n", r.Error)
			}
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
