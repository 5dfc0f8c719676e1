package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/config"
	"github.com/ghrcdaac/granuledb/internal/logging"
	"github.com/ghrcdaac/granuledb/internal/store"
	"github.com/ghrcdaac/granuledb/internal/telemetry"
)

type commandContext struct {
	configFlag   *string
	dbFlag       *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	logger   *slog.Logger
	reporter *telemetry.Reporter
	runID    string
}

func newCommandContext(configFlag, dbFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		dbFlag:       dbFlag,
		logLevelFlag: logLevelFlag,
		logger:       logging.NewNop(),
	}
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if db := flagValue(c.dbFlag); db != "" {
			expanded, err := config.ExpandPath(db)
			if err != nil {
				c.configErr = fmt.Errorf("resolve --db: %w", err)
				return
			}
			cfg.Store.Path = expanded
		}
		if level := flagValue(c.logLevelFlag); level != "" {
			cfg.Logging.Level = strings.ToLower(level)
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

// setup loads configuration and builds the run-scoped logger and reporter.
func (c *commandContext) setup(cmd *cobra.Command) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File != "" {
		opts.OutputPaths = []string{cfg.Logging.File}
	} else {
		opts.Writer = cmd.ErrOrStderr()
	}
	logger, err := logging.New(opts)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	c.runID = uuid.NewString()
	c.logger = logger.With(logging.String(logging.FieldRunID, c.runID))
	c.reporter = telemetry.New(telemetry.Settings{
		Enabled:  cfg.Telemetry.Enabled,
		APIKey:   cfg.Telemetry.APIKey,
		Endpoint: cfg.Telemetry.Endpoint,
		Version:  Version,
		RunID:    c.runID,
	})
	c.reporter.TrackCommand(cmd.Name())
	return nil
}

// openStore binds the configured database. Mutating callers also take the
// advisory lock next to it when store.lock is set; a held lock fails fast.
// The returned release closes the store and drops the lock.
func (c *commandContext) openStore(ctx context.Context, mutating bool) (*store.SQLiteStore, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}

	lock, err := c.acquireLock(mutating)
	if err != nil {
		return nil, nil, err
	}
	unlock := func() {
		if lock != nil {
			_ = lock.Unlock()
		}
	}

	s, err := store.Open(ctx, store.Config{
		Path:        cfg.Store.Path,
		BusyTimeout: cfg.BusyTimeout(),
		Logger:      c.logger,
	})
	if err != nil {
		unlock()
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	release := func() {
		if err := s.Close(); err != nil {
			c.logger.Warn("close store", logging.Error(err))
		}
		unlock()
	}
	return s, release, nil
}

func (c *commandContext) acquireLock(mutating bool) (*flock.Flock, error) {
	cfg := c.config
	if !mutating || !cfg.Store.Lock {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LockPath()), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("store %s is in use by another granuledb process (lock %s)", cfg.Store.Path, cfg.LockPath())
	}
	return lock, nil
}

// withStore runs fn against an open store and releases it afterwards.
func (c *commandContext) withStore(ctx context.Context, mutating bool, fn func(*store.SQLiteStore) error) error {
	s, release, err := c.openStore(ctx, mutating)
	if err != nil {
		return err
	}
	defer release()
	return fn(s)
}

func (c *commandContext) close() {
	c.reporter.Close()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
