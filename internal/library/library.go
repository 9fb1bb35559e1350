// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package library

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ayasato/oneiro/internal/dream"
)

// MediaEntry is one catalog item in the library file.
type MediaEntry struct {
	ID       int      `json:"id"`
	Title    string   `json:"title,omitempty"`
	Genres   []string `json:"genres,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Studio   string   `json:"studio,omitempty"`
	Year     int      `json:"year,omitempty"`
	Episodes int      `json:"episodes,omitempty"`
	Format   string   `json:"format,omitempty"`
}

// fileSchema is the on-disk shape of the library file. History and
// feedback are keyed by user ID so one file can hold multiple local
// users, though the common case is a single "default" entry.
type fileSchema struct {
	Media    []MediaEntry                    `json:"media"`
	History  map[string][]dream.WatchEntry   `json:"history"`
	Feedback map[string]dream.FeedbackExport `json:"feedback"`
}

// File is a library backed by a single JSON file on disk. It serves
// media metadata, watch history and the explicit feedback export to the
// engine. The file is re-read when its modification time changes, so
// external tools can update it while the server runs.
//
// A missing file is not an error: the library serves empty data until
// the file appears.
type File struct {
	path   string
	logger zerolog.Logger

	mu      sync.RWMutex
	media   map[int]MediaEntry
	data    fileSchema
	modTime time.Time
	loaded  bool
}

// ErrUnknownMedia is returned by Lookup for IDs not in the catalog.
var ErrUnknownMedia = fmt.Errorf("library: unknown media id")

// Open creates a file-backed library at path and performs the initial
// load. A missing file only logs a warning.
func Open(path string, logger zerolog.Logger) (*File, error) {
	f := &File{
		path:   path,
		logger: logger.With().Str("component", "library").Logger(),
		media:  make(map[int]MediaEntry),
	}
	if err := f.reload(); err != nil {
		if os.IsNotExist(err) {
			f.logger.Warn().Str("path", path).
				Msg("library file not found, serving empty library")
			return f, nil
		}
		return nil, err
	}
	return f, nil
}

// Lookup implements dream.MediaLookup.
func (f *File) Lookup(ctx context.Context, mediaID int) (dream.MediaInfo, error) {
	if err := ctx.Err(); err != nil {
		return dream.MediaInfo{}, err
	}
	f.maybeReload()

	f.mu.RLock()
	entry, ok := f.media[mediaID]
	f.mu.RUnlock()
	if !ok {
		return dream.MediaInfo{}, fmt.Errorf("%w: %d", ErrUnknownMedia, mediaID)
	}
	return dream.MediaInfo{Genres: entry.Genres, Tags: entry.Tags}, nil
}

// Export implements dream.FeedbackStore. An unknown user yields an empty
// export, not an error.
func (f *File) Export(ctx context.Context, userID string) (dream.FeedbackExport, error) {
	if err := ctx.Err(); err != nil {
		return dream.FeedbackExport{}, err
	}
	f.maybeReload()

	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.data.Feedback[userID], nil
}

// History implements the engine's history source.
func (f *File) History(ctx context.Context, userID string) ([]dream.WatchEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.maybeReload()

	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.data.History[userID], nil
}

// Size returns the number of catalog entries.
func (f *File) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.media)
}

// maybeReload re-reads the file when its mtime moved. Reload failures
// keep the last good snapshot.
func (f *File) maybeReload() {
	info, err := os.Stat(f.path)
	if err != nil {
		return
	}

	f.mu.RLock()
	upToDate := f.loaded && info.ModTime().Equal(f.modTime)
	f.mu.RUnlock()
	if upToDate {
		return
	}

	if err := f.reload(); err != nil {
		f.logger.Warn().Err(err).Msg("library reload failed, keeping previous data")
	}
}

func (f *File) reload() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return err
	}

	var data fileSchema
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse library %s: %w", f.path, err)
	}

	media := make(map[int]MediaEntry, len(data.Media))
	for _, m := range data.Media {
		if m.ID <= 0 {
			continue
		}
		media[m.ID] = m
	}

	f.mu.Lock()
	f.media = media
	f.data = data
	f.modTime = info.ModTime()
	f.loaded = true
	f.mu.Unlock()

	f.logger.Debug().
		Int("media", len(media)).
		Int("users", len(data.History)).
		Msg("library loaded")
	return nil
}
