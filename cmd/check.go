package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pathwars/pbpnudge/internal/logger"
	"github.com/pathwars/pbpnudge/pkg/config"
	"github.com/pathwars/pbpnudge/pkg/monitor"
	"github.com/pathwars/pbpnudge/pkg/state"
	"github.com/pathwars/pbpnudge/pkg/telegram"
	"github.com/pathwars/pbpnudge/pkg/tracker"
)

var stateFile string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch new messages and alert on inactive PBP topics",
	Long: `Fetch pending updates, record the last human message per PBP topic,
and alert the paired chat topic for every campaign silent longer than the
configured threshold. Meant to run from a scheduler (e.g. hourly); runs
must not overlap.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&stateFile, "state-file", "", "persist state to a local file instead of the gist")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	log := logger.New(logLevel).With().Str("run_id", uuid.NewString()).Logger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN not set")
	}

	ctx := context.Background()

	var store state.Store
	if stateFile != "" {
		store = state.NewFileStore(stateFile)
	} else {
		store = state.NewGistStore(cfg.GistID, cfg.GistToken, log)
	}

	st, err := store.Load(ctx)
	if err != nil {
		return err
	}
	log.Info().Int64("offset", st.Offset).Int("topics", len(st.Topics)).Msg("loaded state")

	client := telegram.New(cfg.TelegramToken)

	updates, err := client.GetUpdates(ctx, st.Offset)
	if err != nil {
		// Soft failure: continue with what we know, alerts still fire.
		log.Warn().Err(err).Msg("failed to fetch updates")
		updates = nil
	}
	log.Info().Int("updates", len(updates)).Msg("received updates")

	if len(updates) > 0 {
		res := tracker.Apply(updates, cfg, st, log)
		log.Info().
			Int("tracked", res.Tracked).
			Int("skipped", res.Skipped).
			Int64("offset", st.Offset).
			Msg("processed updates")
	}

	now := time.Now().UTC()
	if cfg.CaptureLogs {
		tracker.PruneLogs(st, now)
	}

	sum := monitor.Check(ctx, cfg, st, client, now, log)
	log.Info().
		Int("alerted", sum.Alerted).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Msg("inactivity check complete")

	// State is saved regardless of earlier partial failures; a lost save
	// just means the next run re-fetches the same updates.
	if err := store.Save(ctx, st); err != nil {
		log.Warn().Err(err).Msg("failed to save state")
	} else {
		log.Info().Msg("state saved")
	}

	return nil
}
