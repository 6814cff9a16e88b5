package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ViewExporter writes emitted views to disk as JSON, one file per export.
// Useful for debugging a live session or diffing replay output.
type ViewExporter struct {
	dir string
}

// NewViewExporter creates an exporter rooted at dir.
func NewViewExporter(dir string) *ViewExporter {
	return &ViewExporter{dir: dir}
}

// Save writes one view. kind distinguishes the view family ("book",
// "account"); seq is the sequence the view was built at.
func (e *ViewExporter) Save(kind string, seq uint64, view any) error {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}

	filename := fmt.Sprintf("view_%s_%d_%d.json", kind, seq, time.Now().Unix())
	path := filepath.Join(e.dir, filename)

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write view: %w", err)
	}

	slog.Info("View exported",
		slog.String("kind", kind),
		slog.Uint64("seq", seq),
		slog.String("path", path))

	return nil
}

// Cleanup removes old exports of the given kind, keeping only the latest N
// by sequence.
func (e *ViewExporter) Cleanup(kind string, keepCount int) error {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	type viewFile struct {
		path string
		seq  uint64
	}
	var files []viewFile

	prefix := fmt.Sprintf("view_%s_", kind)
	pattern := prefix + "%d_%d.json"
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var seq uint64
		var ts int64
		if _, err := fmt.Sscanf(entry.Name(), pattern, &seq, &ts); err == nil {
			files = append(files, viewFile{
				path: filepath.Join(e.dir, entry.Name()),
				seq:  seq,
			})
		}
	}

	if len(files) <= keepCount {
		return nil
	}

	// Simple bubble sort (small N)
	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			if files[j].seq > files[i].seq {
				files[i], files[j] = files[j], files[i]
			}
		}
	}

	for i := keepCount; i < len(files); i++ {
		if err := os.Remove(files[i].path); err != nil {
			slog.Warn("Failed to remove old view export", slog.String("path", files[i].path))
		}
	}

	return nil
}
