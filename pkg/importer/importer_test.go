package importer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwars/pbpnudge/internal/logger"
	"github.com/pathwars/pbpnudge/pkg/config"
)

func importerConfig() *config.Config {
	return &config.Config{
		GroupID:   -1001234567890,
		GMUserIDs: []int64{999},
		TopicPairs: []config.TopicPair{
			{Name: "TestCampaign", ChatTopicID: 10, PBPTopicIDs: []int64{100}},
		},
	}
}

func newImporter(t *testing.T, dryRun bool) *Importer {
	t.Helper()
	return &Importer{
		Config:  importerConfig(),
		LogsDir: filepath.Join(t.TempDir(), "logs"),
		DryRun:  dryRun,
		Log:     logger.Nop(),
	}
}

func makeMsg(id, threadID int64, text string) ExportMessage {
	return ExportMessage{
		ID:       id,
		Type:     "message",
		ThreadID: threadID,
		Date:     "2025-06-15T14:30:05",
		From:     "Alice",
		FromID:   "user42",
		Text:     json.RawMessage(`"` + text + `"`),
	}
}

func TestRunExport_DryRunWritesNothing(t *testing.T) {
	imp := newImporter(t, true)
	export := &Export{Messages: []ExportMessage{
		makeMsg(1, 100, "First post"),
		makeMsg(2, 100, "Second post"),
		makeMsg(3, 999, "Wrong topic"),
	}}

	results, err := imp.RunExport(export)
	require.NoError(t, err)

	assert.Equal(t, 2, results["TestCampaign"])
	_, err = os.Stat(imp.LogsDir)
	assert.True(t, os.IsNotExist(err), "dry run must create no files")
}

func TestRunExport_WritesMonthFiles(t *testing.T) {
	imp := newImporter(t, false)

	june1 := makeMsg(1, 100, "First post")
	june1.Date = "2025-06-15T10:00:00"
	june2 := makeMsg(2, 100, "GM narrates")
	june2.Date = "2025-06-15T10:05:00"
	june2.From = "Lewis"
	june2.FromID = "user999"
	july := makeMsg(3, 100, "July post")
	july.Date = "2025-07-01T12:00:00"

	export := &Export{Messages: []ExportMessage{june1, june2, july}}

	results, err := imp.RunExport(export)
	require.NoError(t, err)
	assert.Equal(t, 3, results["TestCampaign"])

	campaignDir := filepath.Join(imp.LogsDir, "TestCampaign")

	juneFile, err := os.ReadFile(filepath.Join(campaignDir, "2025-06.md"))
	require.NoError(t, err)
	assert.Contains(t, string(juneFile), "# TestCampaign — 2025-06")
	assert.Contains(t, string(juneFile), "First post")
	assert.Contains(t, string(juneFile), "**Lewis** [GM]")

	julyFile, err := os.ReadFile(filepath.Join(campaignDir, "2025-07.md"))
	require.NoError(t, err)
	assert.Contains(t, string(julyFile), "July post")

	// Second run over the identical export imports nothing.
	results2, err := imp.RunExport(export)
	require.NoError(t, err)
	assert.Equal(t, 0, results2["TestCampaign"])

	juneAgain, err := os.ReadFile(filepath.Join(campaignDir, "2025-06.md"))
	require.NoError(t, err)
	assert.Equal(t, string(juneFile), string(juneAgain), "re-run must not touch month files")
}

func TestRunExport_OverlappingExports(t *testing.T) {
	imp := newImporter(t, false)

	first := &Export{Messages: []ExportMessage{
		makeMsg(1, 100, "one"),
		makeMsg(2, 100, "two"),
	}}
	second := &Export{Messages: []ExportMessage{
		makeMsg(2, 100, "two"),
		makeMsg(3, 100, "three"),
	}}

	results, err := imp.RunExport(first)
	require.NoError(t, err)
	assert.Equal(t, 2, results["TestCampaign"])

	results, err = imp.RunExport(second)
	require.NoError(t, err)
	assert.Equal(t, 1, results["TestCampaign"], "only the unseen id imports")

	content, err := os.ReadFile(filepath.Join(imp.LogsDir, "TestCampaign", "2025-06.md"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "two"), "no duplicate entries")
}

func TestRunExport_DryRunMatchesRealRunAfterImport(t *testing.T) {
	imp := newImporter(t, false)
	export := &Export{Messages: []ExportMessage{makeMsg(1, 100, "post")}}

	_, err := imp.RunExport(export)
	require.NoError(t, err)

	imp.DryRun = true
	results, err := imp.RunExport(export)
	require.NoError(t, err)
	assert.Equal(t, 0, results["TestCampaign"], "dry run consults the existing id set")
}

func TestRunExport_SkipsServiceMessages(t *testing.T) {
	imp := newImporter(t, false)

	pin := makeMsg(2, 100, "")
	pin.Action = "pin_message"
	service := makeMsg(3, 100, "joined")
	service.Type = "service"

	export := &Export{Messages: []ExportMessage{
		makeMsg(1, 100, "Real post"),
		pin,
		service,
	}}

	results, err := imp.RunExport(export)
	require.NoError(t, err)
	assert.Equal(t, 1, results["TestCampaign"])
}

func TestRunExport_ReplyToThreadFallback(t *testing.T) {
	imp := newImporter(t, false)

	// Desktop exports carry the topic through reply_to_message_id.
	msg := makeMsg(1, 0, "Desktop export post")
	msg.ReplyToID = 100

	results, err := imp.RunExport(&Export{Messages: []ExportMessage{msg}})
	require.NoError(t, err)
	assert.Equal(t, 1, results["TestCampaign"])
}

func TestRunExport_ChronologicalOrderWithinMonth(t *testing.T) {
	imp := newImporter(t, false)

	late := makeMsg(1, 100, "later post")
	late.Date = "2025-06-20T09:00:00"
	early := makeMsg(2, 100, "earlier post")
	early.Date = "2025-06-01T09:00:00"

	_, err := imp.RunExport(&Export{Messages: []ExportMessage{late, early}})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(imp.LogsDir, "TestCampaign", "2025-06.md"))
	require.NoError(t, err)
	assert.Less(t,
		strings.Index(string(content), "earlier post"),
		strings.Index(string(content), "later post"),
		"entries appear in timestamp order regardless of export order")
}

func TestRunExport_SkipsDatelessMessages(t *testing.T) {
	imp := newImporter(t, false)

	dateless := makeMsg(2, 100, "no date")
	dateless.Date = ""

	results, err := imp.RunExport(&Export{Messages: []ExportMessage{
		makeMsg(1, 100, "dated"),
		dateless,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, results["TestCampaign"])
}

func TestRun_LoadsExportFile(t *testing.T) {
	imp := newImporter(t, false)

	export := Export{Messages: []ExportMessage{makeMsg(1, 100, "from file")}}
	data, err := json.Marshal(export)
	require.NoError(t, err)

	exportPath := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(exportPath, data, 0644))

	results, err := imp.Run(exportPath)
	require.NoError(t, err)
	assert.Equal(t, 1, results["TestCampaign"])
}

func TestRun_BadExportFile(t *testing.T) {
	imp := newImporter(t, false)

	exportPath := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(exportPath, []byte("{not json"), 0644))

	_, err := imp.Run(exportPath)
	assert.Error(t, err)
}

func TestBuildThreadMap(t *testing.T) {
	cfg := &config.Config{
		TopicPairs: []config.TopicPair{
			{Name: "A", ChatTopicID: 10, PBPTopicIDs: []int64{100, 101}},
			{Name: "B", ChatTopicID: 20, PBPTopicID: 200},
		},
	}

	m := buildThreadMap(cfg)

	assert.Equal(t, "A", m[100])
	assert.Equal(t, "A", m[101])
	assert.Equal(t, "B", m[200])
	_, ok := m[10]
	assert.False(t, ok, "chat topics are not PBP topics")
}

func TestIDSetRoundTrip(t *testing.T) {
	dir := t.TempDir()

	ids, err := loadImportedIDs(dir)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids["3"] = true
	ids["1"] = true
	ids["2"] = true
	require.NoError(t, saveImportedIDs(dir, ids))

	loaded, err := loadImportedIDs(dir)
	require.NoError(t, err)
	assert.Equal(t, ids, loaded)

	data, err := os.ReadFile(filepath.Join(dir, idSetFilename))
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", string(data), "ids persist sorted")
}
