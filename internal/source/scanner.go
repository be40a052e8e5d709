package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanDir walks the feed directory and discovers every .jsonl feed file.
// A missing directory is not an error; it simply yields nothing.
func ScanDir(feedDir string) ([]DiscoveredFile, error) {
	info, err := os.Stat(feedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	var files []DiscoveredFile

	err = filepath.WalkDir(feedDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // intentionally skip unreadable entries
		}
		if d.IsDir() {
			// Hidden directories hold editor swap files and the like.
			if path != feedDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".jsonl" {
			return nil
		}

		df, statErr := Describe(path)
		if statErr != nil {
			return nil //nolint:nilerr // file vanished between walk and stat
		}
		files = append(files, df)
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

// Describe stats a single feed file.
func Describe(path string) (DiscoveredFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return DiscoveredFile{}, err
	}
	return DiscoveredFile{
		Path:    path,
		Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
	}, nil
}
