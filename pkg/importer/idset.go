package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pathwars/pbpnudge/pkg/fileutil"
)

// idSetFilename tracks which message ids a campaign directory already
// holds. It is the sole durable dedup key: it only ever grows.
const idSetFilename = ".imported_ids"

func loadImportedIDs(campaignDir string) (map[string]bool, error) {
	data, err := os.ReadFile(filepath.Join(campaignDir, idSetFilename))
	if os.IsNotExist(err) {
		return make(map[string]bool), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read id set in %s: %w", campaignDir, err)
	}

	ids := make(map[string]bool)
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line != "" {
			ids[line] = true
		}
	}
	return ids, nil
}

func saveImportedIDs(campaignDir string, ids map[string]bool) error {
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	if err := fileutil.WriteLinesToFile(filepath.Join(campaignDir, idSetFilename), sorted); err != nil {
		return fmt.Errorf("failed to save id set in %s: %w", campaignDir, err)
	}
	return nil
}
