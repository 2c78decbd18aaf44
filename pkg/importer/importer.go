package importer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pathwars/pbpnudge/pkg/config"
	"github.com/pathwars/pbpnudge/pkg/fileutil"
)

// Importer merges a one-shot export into the per-campaign transcript
// tree under LogsDir. Running it twice over the same export, or over
// overlapping exports, writes each message exactly once.
type Importer struct {
	Config  *config.Config
	LogsDir string
	DryRun  bool
	Log     zerolog.Logger
}

// Run loads the export file and imports it. The returned map holds the
// number of newly imported messages per campaign.
func (imp *Importer) Run(exportPath string) (map[string]int, error) {
	data, err := os.ReadFile(exportPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read export %s: %w", exportPath, err)
	}

	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse export %s: %w", exportPath, err)
	}

	imp.Log.Info().Int("messages", len(export.Messages)).Str("export", exportPath).Msg("loaded export")
	return imp.RunExport(&export)
}

// RunExport classifies every record, groups candidates by campaign, and
// imports each campaign in turn.
func (imp *Importer) RunExport(export *Export) (map[string]int, error) {
	threadMap := buildThreadMap(imp.Config)

	byCampaign := make(map[string][]*ExportMessage)
	for i := range export.Messages {
		msg := &export.Messages[i]
		if msg.Type != "message" || msg.Action != "" {
			continue
		}
		tid := msg.topicID()
		if tid == 0 {
			continue
		}
		campaign, ok := threadMap[tid]
		if !ok {
			continue
		}
		byCampaign[campaign] = append(byCampaign[campaign], msg)
	}

	campaigns := make([]string, 0, len(byCampaign))
	for name := range byCampaign {
		campaigns = append(campaigns, name)
	}
	sort.Strings(campaigns)

	results := make(map[string]int, len(campaigns))
	for _, name := range campaigns {
		count, err := imp.importCampaign(name, byCampaign[name])
		if err != nil {
			return results, fmt.Errorf("failed to import %s: %w", name, err)
		}
		results[name] = count
	}
	return results, nil
}

func (imp *Importer) importCampaign(campaign string, msgs []*ExportMessage) (int, error) {
	campaignDir := filepath.Join(imp.LogsDir, SanitizeDirName(campaign))
	gmSet := gmSetFor(imp.Config, campaign)
	log := imp.Log.With().Str("campaign", campaign).Logger()

	// Consult the existing id set even in dry-run mode (read-only) so the
	// reported counts match what a real run would import.
	imported, err := loadImportedIDs(campaignDir)
	if err != nil {
		return 0, err
	}

	// Chronological order within each month file regardless of export
	// order. Date strings are sortable ISO, stable sort keeps export
	// order for equal timestamps.
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Date < msgs[j].Date })

	byMonth := make(map[string][]*ExportMessage)
	var months []string
	seen := make(map[string]bool)
	newCount := 0

	for _, msg := range msgs {
		id := strconv.FormatInt(msg.ID, 10)
		if imported[id] || seen[id] {
			continue
		}
		if len(msg.Date) < 7 {
			continue
		}
		month := msg.Date[:7]
		if _, ok := byMonth[month]; !ok {
			months = append(months, month)
		}
		byMonth[month] = append(byMonth[month], msg)
		seen[id] = true
		newCount++
	}

	if newCount == 0 {
		log.Info().Msg("nothing new to import")
		return 0, nil
	}

	sort.Strings(months)

	if imp.DryRun {
		log.Info().
			Int("messages", newCount).
			Str("from", months[0]).
			Str("to", months[len(months)-1]).
			Msg("would import")
		return newCount, nil
	}

	if err := fileutil.EnsureDirectoryExists(campaignDir); err != nil {
		return 0, fmt.Errorf("failed to create campaign directory: %w", err)
	}

	newIDs := make([]string, 0, newCount)
	for _, month := range months {
		logFile := filepath.Join(campaignDir, month+".md")

		var b strings.Builder
		if !fileutil.FileExists(logFile) {
			fmt.Fprintf(&b, "# %s — %s\n\n", campaign, month)
			b.WriteString("*PBP transcript archived by pbpnudge.*\n\n---\n\n")
		}
		for _, msg := range byMonth[month] {
			b.WriteString(FormatEntry(msg, gmSet[msg.userID()]))
			b.WriteString("\n")
			newIDs = append(newIDs, strconv.FormatInt(msg.ID, 10))
		}

		if err := fileutil.AppendToFile(logFile, b.String()); err != nil {
			return 0, err
		}
	}

	// Persist the grown id set only after every month file is written; a
	// crash mid-write must not mark unrecorded messages as imported.
	for _, id := range newIDs {
		imported[id] = true
	}
	if err := saveImportedIDs(campaignDir, imported); err != nil {
		return 0, err
	}

	log.Info().
		Int("messages", newCount).
		Str("from", months[0]).
		Str("to", months[len(months)-1]).
		Msg("imported")
	return newCount, nil
}

// buildThreadMap maps every configured PBP topic id, current and
// historical, to its campaign name.
func buildThreadMap(cfg *config.Config) map[int64]string {
	m := make(map[int64]string)
	for _, pair := range cfg.TopicPairs {
		for _, id := range pair.AllPBPTopicIDs() {
			m[id] = pair.Name
		}
	}
	return m
}

func gmSetFor(cfg *config.Config, campaign string) map[string]bool {
	for _, pair := range cfg.TopicPairs {
		if pair.Name == campaign {
			return pair.GMSet(cfg.GMUserIDs)
		}
	}
	return nil
}
