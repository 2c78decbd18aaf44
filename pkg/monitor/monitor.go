// Package monitor scans tracked topics for inactivity and posts alerts
// into the paired chat topics.
package monitor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathwars/pbpnudge/pkg/config"
	"github.com/pathwars/pbpnudge/pkg/state"
)

// Sender posts alert messages. *telegram.Client satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, chatID, threadID int64, text string) error
}

// Summary counts per-pair outcomes of one monitoring pass.
type Summary struct {
	Alerted int
	Skipped int
	Failed  int
}

// Check evaluates every configured pair independently. A send failure
// for one pair never blocks the rest, and leaves that pair's last-alert
// timestamp untouched so the next run retries. A successful send records
// now, which suppresses further alerts for the same topic for the full
// inactivity window again.
func Check(ctx context.Context, cfg *config.Config, st *state.RunState, sender Sender, now time.Time, log zerolog.Logger) Summary {
	threshold := time.Duration(cfg.AlertAfterHours) * time.Hour

	var sum Summary
	for _, pair := range cfg.TopicPairs {
		key := strconv.FormatInt(pair.PrimaryID(), 10)

		record, ok := st.Topics[key]
		if !ok {
			// Nothing observed yet, nothing to compare against.
			log.Debug().Str("campaign", pair.Name).Msg("no messages tracked yet, skipping")
			sum.Skipped++
			continue
		}

		elapsed := now.Sub(record.LastMessageTime)
		if elapsed < threshold {
			sum.Skipped++
			continue
		}

		if lastAlert, ok := st.LastAlerts[key]; ok && now.Sub(lastAlert) < threshold {
			log.Debug().
				Str("campaign", pair.Name).
				Dur("since_last_alert", now.Sub(lastAlert)).
				Msg("already alerted recently, skipping")
			sum.Skipped++
			continue
		}

		text := alertText(pair.Name, record.LastUser, elapsed)
		log.Info().Str("campaign", pair.Name).Str("inactive", formatElapsed(elapsed)).Msg("sending alert")

		if err := sender.SendMessage(ctx, cfg.GroupID, pair.ChatTopicID, text); err != nil {
			log.Warn().Err(err).Str("campaign", pair.Name).Msg("failed to send alert")
			sum.Failed++
			continue
		}

		st.LastAlerts[key] = now
		sum.Alerted++
	}
	return sum
}

func alertText(campaign, lastUser string, elapsed time.Duration) string {
	if lastUser == "" {
		lastUser = "someone"
	}
	return fmt.Sprintf("No new posts in %s PBP for %s.\nLast post was from %s.",
		campaign, formatElapsed(elapsed), lastUser)
}

// formatElapsed floors to whole hours and renders "{d}d {h}h" past a
// day, "{h}h" below it.
func formatElapsed(elapsed time.Duration) string {
	hours := int(elapsed.Hours())
	if hours >= 24 {
		return fmt.Sprintf("%dd %dh", hours/24, hours%24)
	}
	return fmt.Sprintf("%dh", hours)
}
