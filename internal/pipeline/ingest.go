package pipeline

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/theirongolddev/fincast/internal/source"
	"github.com/theirongolddev/fincast/internal/store"
)

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	TotalFiles  int
	ParsedFiles int
	Unchanged   int
	Removed     int
	ParseErrors int
	FileErrors  int
	Accounts    int
	Records     int
}

// ProgressFunc is called during ingestion to report progress.
// current is the number of files processed so far, total is the total count.
type ProgressFunc func(current, total int)

// Ingest parses the given feed files with a bounded worker pool and writes
// each successfully parsed file to the store. Parsing runs in parallel;
// writes happen afterwards from the calling goroutine.
func Ingest(files []source.DiscoveredFile, st *store.Store, workers int, progressFn ProgressFunc) (*IngestResult, error) {
	result := &IngestResult{TotalFiles: len(files)}
	if len(files) == 0 {
		return result, nil
	}

	parsed := parseAll(files, workers, func(n int) {
		if progressFn != nil {
			progressFn(n, len(files))
		}
	})

	for i, pr := range parsed {
		if pr.Err != nil {
			result.FileErrors++
			continue
		}
		df := files[i]
		if err := st.SaveFeed(df.Path, pr.Accounts, pr.Records, df.ModTime, df.Size); err != nil {
			return result, fmt.Errorf("saving %s: %w", df.Path, err)
		}
		result.ParsedFiles++
		result.ParseErrors += pr.ParseErrors
		result.Accounts += len(pr.Accounts)
		result.Records += len(pr.Records)
	}

	return result, nil
}

// IngestFile parses and stores a single feed file regardless of whether it
// changed since the last run.
func IngestFile(path string, st *store.Store) (*IngestResult, error) {
	df, err := source.Describe(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Ingest([]source.DiscoveredFile{df}, st, 1, nil)
}

// parseAll fans files out to at most workers goroutines and collects the
// results in input order. workers <= 0 means GOMAXPROCS.
func parseAll(files []source.DiscoveredFile, workers int, onDone func(n int)) []source.ParseResult {
	numWorkers := workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers < 1 {
		numWorkers = 4
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make([]source.ParseResult, len(files))
	var wg sync.WaitGroup
	var processed atomic.Int64

	for i := range files {
		work <- i
	}
	close(work)

	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				results[idx] = source.ParseFile(files[idx])
				n := processed.Add(1)
				if onDone != nil {
					onDone(int(n))
				}
			}
		}()
	}

	wg.Wait()
	return results
}
