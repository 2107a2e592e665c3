package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"matport/internal/config"
	"matport/internal/logging"
	"matport/internal/store"
)

type commandContext struct {
	configFlag  *string
	libraryFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, libraryFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		libraryFlag: libraryFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.loggerOnce.Do(func() {
		logger, logErr := logging.NewWithLogFile(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		}, cfg.Paths.LogDir)
		if logErr != nil {
			c.configErr = logErr
			return
		}
		c.logger = logger
	})
	if c.logger == nil {
		return nil, c.configErr
	}
	return c.logger, nil
}

func (c *commandContext) libraryName() string {
	if c.libraryFlag == nil || strings.TrimSpace(*c.libraryFlag) == "" {
		return "default"
	}
	return strings.TrimSpace(*c.libraryFlag)
}

// withWriteStore runs fn against the library opened for read-write.
func (c *commandContext) withWriteStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.LibraryPath(c.libraryName()))
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st)
}

// withReadStore runs fn against the library opened read-only, so queries
// work alongside a running import.
func (c *commandContext) withReadStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.OpenReadOnly(cfg.LibraryPath(c.libraryName()))
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
