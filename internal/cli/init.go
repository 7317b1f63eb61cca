// Package cli holds the expenses command line: the API server and the
// admin commands that share its configuration.
package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"

	"expenses/internal/backend"
	"expenses/internal/config"
	"expenses/internal/log"
)

// runtime is filled in before any subcommand runs.
type runtime struct {
	cfg    *config.Config
	logger *log.Logger
}

// LoadEnvFile loads a dotenv file for local development. A missing file is
// not an error; variables already set in the environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadAndValidateConfig reads the configuration from the environment.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the application logger and makes it the slog default.
func SetupLogger(cfg *config.Config, w io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:  log.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Writer: w,
	})
	log.SetDefault(logger)
	return logger
}

func (rt *runtime) init(envFile string, logOutput io.Writer) error {
	if err := LoadEnvFile(envFile); err != nil {
		return err
	}
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	rt.cfg = cfg
	rt.logger = SetupLogger(cfg, logOutput)
	return nil
}

// openStore opens the configured backend. The caller closes it.
func (rt *runtime) openStore() (backend.Store, error) {
	bcfg, err := backend.FromAppConfig(rt.cfg)
	if err != nil {
		return nil, err
	}
	return backend.Open(bcfg, rt.logger.WithComponent(log.ComponentBackend).Logger)
}

// requireSQLite guards the commands that only make sense on a database file.
func (rt *runtime) requireSQLite(command string) error {
	if backend.BackendType(rt.cfg.DataBackend) != backend.SQLiteBackend {
		return fmt.Errorf("%s needs DATA_BACKEND=sqlite, got %q", command, rt.cfg.DataBackend)
	}
	return nil
}
