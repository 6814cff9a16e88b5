package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"statefeed/internal/infra"
	"statefeed/internal/storage"
)

// Bootstrap orchestrates the startup sequence shared by the mirror and
// replay binaries: config, logger, workspace directories, journal.
type Bootstrap struct {
	Config  *infra.Config
	Journal *storage.Journal
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and opens the journal. The journal is
// always opened so replay can read past sessions even when live recording
// is disabled.
func (b *Bootstrap) Initialize() error {
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	if err := infra.EnsureDir(filepath.Dir(cfg.Journal.Path)); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	journal, err := storage.NewJournal(cfg.Journal.Path)
	if err != nil {
		return err
	}
	b.Journal = journal
	slog.Info("✅ Journal opened (WAL-mode)", "path", cfg.Journal.Path)

	return nil
}

// Shutdown releases held resources.
func (b *Bootstrap) Shutdown() {
	if b.Journal != nil {
		if err := b.Journal.Close(); err != nil {
			slog.Warn("journal close failed", slog.Any("error", err))
		}
	}
}
