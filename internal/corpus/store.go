package corpus

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openharvest/harvester/internal/model"
)

// ErrCorrupt marks a store file that exists but cannot be decoded. Callers
// must surface it to the operator instead of reinitializing: silently
// replacing the file would destroy accumulated history.
var ErrCorrupt = eris.New("corpus: store file is corrupt")

// Store persists the corpus Document as a single pretty-printed JSON file.
// The load-merge-save sequence is serialized by an internal mutex so a
// merge never races another merge against the same file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a Store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load deserializes the persisted document. A missing file yields the
// canonical empty shape with first_scrape set to now; an unreadable or
// undecodable file yields an error wrapping ErrCorrupt.
func (s *Store) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return NewDocument(time.Now().UTC()), nil
	}
	if err != nil {
		return nil, eris.Wrapf(ErrCorrupt, "read %s: %v", s.path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(ErrCorrupt, "decode %s: %v", s.path, err)
	}
	if doc.ResultsByScraper == nil {
		doc.ResultsByScraper = make(map[string]*Entry)
	}
	return &doc, nil
}

// Save writes the document atomically: the JSON is written to a temporary
// file in the same directory and renamed over the target, so a reader never
// observes a truncated store.
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(doc)
}

func (s *Store) saveLocked(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "corpus: encode document")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "corpus: create temp file in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "corpus: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "corpus: close temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "corpus: rename into %s", s.path)
	}
	return nil
}

// KnownURLs loads the durable state and returns the deduplication snapshot
// for one collector ("" = all). Computed fresh on every call so runs always
// gate against the latest persisted state.
func (s *Store) KnownURLs(name string) (map[string]struct{}, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	return doc.KnownURLs(name), nil
}

// Merge folds the given run results into the persisted document and saves
// it: per-collector insert-or-append, per-entry statistics recomputed from
// array lengths, store-wide summary recomputed by summation, history
// bumped. Returns the updated document.
func (s *Store) Merge(results map[string]*model.RunResult) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		doc.apply(name, results[name])
	}

	doc.recompute(now)
	doc.ScrapingHistory.LastUpdated = now
	doc.ScrapingHistory.TotalScrapes++

	if err := s.saveLocked(doc); err != nil {
		return nil, err
	}

	zap.L().Info("corpus merged",
		zap.String("path", s.path),
		zap.Int("collectors", len(results)),
		zap.Int("total_announcements", doc.Summary.TotalAnnouncements),
		zap.Int("total_scrapes", doc.ScrapingHistory.TotalScrapes),
	)
	return doc, nil
}
