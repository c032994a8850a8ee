// Package cache persists fetched title records as one JSON document per
// console id. Writes are atomic so a reader never observes a truncated
// document, even when inspection runs concurrently with a save.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/radatool/radatool/ra"
)

const (
	filePrefix = "console_"
	fileSuffix = ".json"

	// an empty JSON array is exactly 2 bytes; anything at or below that
	// carries no usable data and should force a re-fetch
	minUsableSize = 2
)

// Entry describes one cache document on disk
type Entry struct {
	ConsoleID int
	Size      int64
	Path      string
}

// Store is a directory-backed document store keyed by console id
type Store struct {
	dir    string
	logger zerolog.Logger
}

// NewStore creates the cache directory if needed and returns a store over it
func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	return &Store{
		dir:    dir,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// Dir returns the directory backing the store
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(consoleID int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%d%s", filePrefix, consoleID, fileSuffix))
}

// Load returns the cached records for a console, or false when no usable
// document exists. A missing, empty, or unparseable file is a cache miss,
// never an error.
func (s *Store) Load(consoleID int) ([]ra.TitleRecord, bool) {
	path := s.path(consoleID)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", path).Msg("Cache file unreadable")
		} else {
			s.logger.Debug().Int("console_id", consoleID).Msg("No cache document")
		}
		return nil, false
	}

	if len(data) <= minUsableSize {
		s.logger.Debug().Int("console_id", consoleID).Msg("Cache document empty, ignoring")
		return nil, false
	}

	var records []ra.TitleRecord
	if err := json.Unmarshal(data, &records); err != nil {
		switch err.(type) {
		case *json.UnmarshalTypeError:
			s.logger.Warn().Str("path", path).Msg("Cache document is not an array, ignoring")
		default:
			s.logger.Warn().Err(err).Str("path", path).Msg("Cache document unparseable, ignoring")
		}
		return nil, false
	}

	s.logger.Debug().Int("console_id", consoleID).Int("records", len(records)).Msg("Loaded cache document")
	return records, true
}

// Save writes the full record sequence for a console in one atomic
// operation (temp file + rename).
func (s *Store) Save(consoleID int, records []ra.TitleRecord) error {
	if records == nil {
		// keep the on-disk shape an array, never null
		records = []ra.TitleRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("cache save: encode records: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, filePrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("cache save: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cache save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache save: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(consoleID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache save: %w", err)
	}

	s.logger.Debug().Int("console_id", consoleID).Int("records", len(records)).Msg("Saved cache document")
	return nil
}

// Entries lists all cache documents, ordered by console id
func (s *Store) Entries() ([]Entry, error) {
	names, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}

	var entries []Entry
	for _, path := range names {
		base := filepath.Base(path)
		idStr := strings.TrimSuffix(strings.TrimPrefix(base, filePrefix), fileSuffix)
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{ConsoleID: id, Size: info.Size(), Path: path})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ConsoleID < entries[j].ConsoleID })
	return entries, nil
}

// Delete removes a cache document if present. Deleting an absent document
// returns false, not an error.
func (s *Store) Delete(consoleID int) bool {
	if err := os.Remove(s.path(consoleID)); err != nil {
		return false
	}
	s.logger.Debug().Int("console_id", consoleID).Msg("Deleted cache document")
	return true
}
