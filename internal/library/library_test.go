// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const sampleLibrary = `{
  "media": [
    {"id": 1, "title": "Space Drama", "genres": ["sci-fi"], "tags": ["space", "drama"]},
    {"id": 2, "title": "Cooking Show", "genres": ["slice-of-life"], "tags": ["food"]}
  ],
  "history": {
    "default": [
      {"media_id": 1, "status": "completed", "progress": 12, "episodes": 12, "score": 8}
    ]
  },
  "feedback": {
    "default": {"likes": [1], "dislikes": [2]}
  }
}`

func writeLibrary(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenAndLookup(t *testing.T) {
	lib, err := Open(writeLibrary(t, sampleLibrary), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	info, err := lib.Lookup(context.Background(), 1)
	if err != nil {
		t.Fatalf("Lookup(1): %v", err)
	}
	if len(info.Tags) != 2 || info.Tags[0] != "space" {
		t.Errorf("Lookup(1).Tags = %v, want [space drama]", info.Tags)
	}

	if _, err := lib.Lookup(context.Background(), 99); !errors.Is(err, ErrUnknownMedia) {
		t.Errorf("Lookup(99) error = %v, want ErrUnknownMedia", err)
	}
	if lib.Size() != 2 {
		t.Errorf("Size() = %d, want 2", lib.Size())
	}
}

func TestExportAndHistory(t *testing.T) {
	lib, err := Open(writeLibrary(t, sampleLibrary), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	export, err := lib.Export(context.Background(), "default")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(export.Likes) != 1 || export.Likes[0] != 1 {
		t.Errorf("Likes = %v, want [1]", export.Likes)
	}

	history, err := lib.History(context.Background(), "default")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].MediaID != 1 {
		t.Errorf("History = %+v, want single entry for media 1", history)
	}

	// Unknown user degrades to empty data, not an error.
	export, err = lib.Export(context.Background(), "nobody")
	if err != nil || len(export.Likes) != 0 {
		t.Errorf("Export(nobody) = %v, %v; want empty, nil", export, err)
	}
}

func TestMissingFileServesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	lib, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open on missing file: %v", err)
	}

	if _, err := lib.Lookup(context.Background(), 1); !errors.Is(err, ErrUnknownMedia) {
		t.Errorf("Lookup on empty library error = %v, want ErrUnknownMedia", err)
	}

	// Once the file appears it is picked up on the next access.
	if err := os.WriteFile(path, []byte(sampleLibrary), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := lib.Lookup(context.Background(), 1); err != nil {
		t.Errorf("Lookup after file appeared: %v", err)
	}
}

func TestReloadOnChange(t *testing.T) {
	path := writeLibrary(t, sampleLibrary)
	lib, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	updated := `{"media": [{"id": 3, "tags": ["new"]}]}`
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}
	// Coarse mtime filesystems need the timestamp to actually move.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	if _, err := lib.Lookup(context.Background(), 3); err != nil {
		t.Errorf("Lookup(3) after rewrite: %v", err)
	}
	if _, err := lib.Lookup(context.Background(), 1); !errors.Is(err, ErrUnknownMedia) {
		t.Errorf("Lookup(1) after rewrite error = %v, want ErrUnknownMedia", err)
	}
}

func TestMalformedFileKeepsLastGood(t *testing.T) {
	path := writeLibrary(t, sampleLibrary)
	lib, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	if _, err := lib.Lookup(context.Background(), 1); err != nil {
		t.Errorf("Lookup after corrupt rewrite: %v, want previous data served", err)
	}
}
