package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/theirongolddev/fincast/internal/source"
	"github.com/theirongolddev/fincast/internal/store"
)

// IngestDir discovers the feed files under feedDir, diffs them against the
// store's file tracker and re-ingests only files whose mtime or size
// changed. Tracked files under feedDir that no longer exist have their
// records removed.
func IngestDir(feedDir string, st *store.Store, workers int, progressFn ProgressFunc) (*IngestResult, error) {
	files, err := source.ScanDir(feedDir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", feedDir, err)
	}

	tracked, err := st.GetTrackedFiles()
	if err != nil {
		return nil, fmt.Errorf("reading file tracker: %w", err)
	}

	var changed []source.DiscoveredFile
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f.Path] = struct{}{}
		prev, ok := tracked[f.Path]
		if ok && prev.MtimeNs == f.ModTime && prev.SizeBytes == f.Size {
			continue
		}
		changed = append(changed, f)
	}

	unchanged := len(files) - len(changed)
	result, err := Ingest(changed, st, workers, func(current, _ int) {
		if progressFn != nil {
			progressFn(current+unchanged, len(files))
		}
	})
	if err != nil {
		return nil, err
	}
	result.TotalFiles = len(files)
	result.Unchanged = unchanged

	prefix := filepath.Clean(feedDir) + string(filepath.Separator)
	for path := range tracked {
		if _, ok := present[path]; ok || !strings.HasPrefix(path, prefix) {
			continue
		}
		if err := st.DeleteFeed(path); err != nil {
			return result, fmt.Errorf("removing %s: %w", path, err)
		}
		result.Removed++
	}

	return result, nil
}

// DataDir returns the platform-appropriate data directory.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "fincast")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "fincast")
}

// DBPath returns the database path inside dataDir.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "fincast.db")
}

// FeedDir returns the directory watched for upstream feed files.
func FeedDir(dataDir string) string {
	return filepath.Join(dataDir, "feeds")
}
