// Package tracker reconciles a batch of Telegram updates into the run
// state: it records the last human message per PBP topic and computes
// the next getUpdates offset.
package tracker

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathwars/pbpnudge/pkg/config"
	"github.com/pathwars/pbpnudge/pkg/state"
	"github.com/pathwars/pbpnudge/pkg/telegram"
)

const (
	logRetention  = 8 * 24 * time.Hour
	logExcerptMax = 2000
)

// Result summarizes one reconciliation pass.
type Result struct {
	Seen    int
	Tracked int
	Skipped int
}

// Apply processes updates in delivery order, mutating st. The offset
// advances past every update id seen, filtered or not: redelivery would
// resurrect stale "not yet answered" records, so forward progress wins
// over retrying individual malformed updates. Qualifying messages
// replace the topic record wholesale; the last one in the batch wins.
func Apply(updates []telegram.Update, cfg *config.Config, st *state.RunState, log zerolog.Logger) Result {
	topics := topicNames(cfg)

	var res Result
	for _, upd := range updates {
		res.Seen++
		if upd.UpdateID+1 > st.Offset {
			st.Offset = upd.UpdateID + 1
		}

		msg := upd.Message
		if msg == nil || msg.Chat.ID != cfg.GroupID || msg.ThreadID == 0 {
			res.Skipped++
			continue
		}
		campaign, ok := topics[msg.ThreadID]
		if !ok {
			res.Skipped++
			continue
		}
		if msg.From == nil || msg.From.IsBot {
			res.Skipped++
			continue
		}

		userName := msg.From.FirstName
		if userName == "" {
			userName = "Someone"
		}

		key := strconv.FormatInt(msg.ThreadID, 10)
		st.Topics[key] = state.TopicRecord{
			LastMessageTime: messageTime(msg),
			LastUser:        userName,
			CampaignName:    campaign,
		}
		res.Tracked++

		if cfg.CaptureLogs {
			captureExcerpt(cfg, st, key, msg, userName)
		}

		log.Debug().Str("campaign", campaign).Str("user", userName).Msg("tracked message")
	}
	return res
}

// messageTime converts the message's own timestamp to UTC. A zero date
// (malformed update) falls back to now so the record stays comparable.
func messageTime(msg *telegram.Message) time.Time {
	if msg.Date == 0 {
		return time.Now().UTC()
	}
	return time.Unix(msg.Date, 0).UTC()
}

func topicNames(cfg *config.Config) map[int64]string {
	m := make(map[int64]string, len(cfg.TopicPairs))
	for _, pair := range cfg.TopicPairs {
		if id := pair.PrimaryID(); id != 0 {
			m[id] = pair.Name
		}
	}
	return m
}

// captureExcerpt appends a message excerpt for later summarization.
// Bot commands are not narrative and are skipped.
func captureExcerpt(cfg *config.Config, st *state.RunState, key string, msg *telegram.Message, userName string) {
	text := msg.Text
	if text == "" || strings.HasPrefix(text, "/") {
		return
	}
	if len(text) > logExcerptMax {
		text = text[:logExcerptMax]
	}

	who := userName
	if isGM(cfg, key, msg.From.ID) {
		who = "GM"
	}

	if st.Logs == nil {
		st.Logs = make(map[string][]state.LogEntry)
	}
	st.Logs[key] = append(st.Logs[key], state.LogEntry{
		Time: messageTime(msg),
		Who:  who,
		Text: text,
	})
}

func isGM(cfg *config.Config, topicKey string, userID int64) bool {
	for _, pair := range cfg.TopicPairs {
		if strconv.FormatInt(pair.PrimaryID(), 10) == topicKey {
			return pair.GMSet(cfg.GMUserIDs)[strconv.FormatInt(userID, 10)]
		}
	}
	return false
}

// PruneLogs drops captured excerpts older than the retention window.
func PruneLogs(st *state.RunState, now time.Time) {
	cutoff := now.Add(-logRetention)
	for key, entries := range st.Logs {
		kept := entries[:0]
		for _, e := range entries {
			if !e.Time.Before(cutoff) {
				kept = append(kept, e)
			}
		}
		st.Logs[key] = kept
	}
}
