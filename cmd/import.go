package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pathwars/pbpnudge/internal/logger"
	"github.com/pathwars/pbpnudge/pkg/config"
	"github.com/pathwars/pbpnudge/pkg/fileutil"
	"github.com/pathwars/pbpnudge/pkg/importer"
)

var (
	dryRun  bool
	logsDir string
)

var importCmd = &cobra.Command{
	Use:   "import [export-file]",
	Short: "Backfill campaign transcripts from a Telegram Desktop JSON export",
	Long: `Backfill per-campaign transcript files from a Telegram Desktop JSON
export (Settings → Advanced → Export chat history, machine-readable JSON).
Messages are mapped to campaigns via their topic thread id and written to
{logs-dir}/{Campaign}/{YYYY-MM}.md. Already-imported message ids are
tracked per campaign, so running the same or an overlapping export again
imports nothing twice.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be imported without writing files")
	importCmd.Flags().StringVar(&logsDir, "logs-dir", "data/pbp_logs", "Directory holding per-campaign transcript files")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	log := logger.New(logLevel)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	exportPath := args[0]
	if !fileutil.FileExists(exportPath) {
		return fmt.Errorf("export file '%s' not found", exportPath)
	}
	if fileutil.IsDirectory(exportPath) {
		return fmt.Errorf("'%s' is a directory, expected an export JSON file", exportPath)
	}

	imp := &importer.Importer{
		Config:  cfg,
		LogsDir: logsDir,
		DryRun:  dryRun,
		Log:     log,
	}

	results, err := imp.Run(exportPath)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No PBP messages found. Check that the export contains the right group and the configured topic ids match.")
		return nil
	}

	campaigns := make([]string, 0, len(results))
	for name := range results {
		campaigns = append(campaigns, name)
	}
	sort.Strings(campaigns)

	total := 0
	for _, name := range campaigns {
		fmt.Printf("  %s: %d new messages\n", name, results[name])
		total += results[name]
	}

	if dryRun {
		fmt.Printf("\nDry run complete. Would import %d messages total.\n", total)
	} else {
		fmt.Printf("\nImport complete. %d new messages imported.\n", total)
	}

	return nil
}
