// Package app implements the application, following the dependency injection pattern.
package app

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"clipvault/internal/platform/database"
	"clipvault/internal/platform/extract"
	"clipvault/internal/platform/ratelimit"

	"github.com/Data-Corruption/lmdb-go/wrap"
	"github.com/Data-Corruption/stdx/xlog"
	"github.com/urfave/cli/v3"
	"golang.org/x/mod/semver"
)

type CleanupFunc func() error

/*
App represents the application, following the dependency injection pattern.

It provides:
  - build-time variables
  - injected services
  - lifecycle management
*/
type App struct {
	// build-time variables
	Name, Version string

	// injected services, etc.

	DB         *wrap.DB
	Log        *xlog.Logger
	BaseURL    string // externally-visible, e.g. "https://example.com"
	UserAgent  string
	StorageDir string // (e.g., ~/.appName)
	RuntimeDir string // (e.g., XDG_RUNTIME_DIR/name, fallback to /tmp/name-USER)
	MediaDir   string // completed downloads

	Extract extract.Config
	Limiter *ratelimit.Limiter

	// FallbackBackendURL is the secondary backend for the fetch client.
	FallbackBackendURL string

	// lifecycle management
	cleanup     []CleanupFunc
	cleanupOnce sync.Once
	// Inside commands, you can use <-a.Context.Done() to check for cancellation.
	Context context.Context
}

func (a *App) Init(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	// paths
	var err error
	if a.StorageDir, err = getStoragePath(a.Name); err != nil {
		return nil, err
	}
	if a.RuntimeDir, err = getRuntimePath(a.Name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(a.StorageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	// logger
	initLogLevel := "none"
	if cmd.String("log") == "debug" {
		initLogLevel = "debug"
	}
	a.Log, err = xlog.New(filepath.Join(a.StorageDir, "logs"), initLogLevel)
	if err != nil {
		return ctx, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.AddCleanup(a.Log.Close)

	a.Log.Debugf("Starting %s, version: %s, storage path: %s, runtime path: %s",
		a.Name, a.Version, a.StorageDir, a.RuntimeDir)

	// database
	if a.DB, err = database.New(filepath.Join(a.StorageDir, "db"), a.Log); err != nil {
		return ctx, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.AddCleanup(func() error {
		a.DB.Close()
		return nil
	})
	a.Log.Debug("Database initialized")

	// get config, creating defaults on first run
	if err := database.UpdateConfig(a.DB, func(cfg *database.Configuration) error { return nil }); err != nil {
		return ctx, fmt.Errorf("failed to init config: %w", err)
	}
	cfg, err := database.ViewConfig(a.DB)
	if err != nil {
		return ctx, fmt.Errorf("failed to view config: %w", err)
	}

	// override port (useful for testing)
	oPort := cmd.Int("port")
	if oPort != 0 {
		cfg.Port = oPort
	}

	// calculate BaseURL; BASE_URL env wins over the derived value
	a.BaseURL = getBaseURL(cfg)
	if env := strings.TrimSpace(os.Getenv("BASE_URL")); env != "" {
		a.BaseURL = strings.TrimRight(env, "/")
	}
	a.Log.Debugf("Base URL: %s", a.BaseURL)

	// set UserAgent
	mmVer := strings.TrimPrefix(semver.MajorMinor(a.Version), "v")
	a.UserAgent = fmt.Sprintf("Mozilla/5.0 (compatible; %s/%s)", a.Name, mmVer)

	// set log level
	if initLogLevel != "debug" {
		if err := a.Log.SetLevel(cfg.LogLevel); err != nil {
			return ctx, fmt.Errorf("failed to set log level: %w", err)
		}
	}
	// put logger into context
	ctx = xlog.IntoContext(ctx, a.Log)

	// media dir
	mediaDirName := cfg.MediaDirName
	if mediaDirName == "" {
		mediaDirName = "media"
	}
	a.MediaDir = filepath.Join(a.StorageDir, mediaDirName)

	// extraction tool + cookie sources
	a.Extract = extract.ConfigFromEnv(ctx, a.RuntimeDir)

	// analyze rate limiter; env override wins over persisted config
	maxPerMinute := cfg.RateLimitPerMinute
	if env := os.Getenv("RATE_LIMIT_PER_MINUTE"); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			maxPerMinute = n
		} else {
			a.Log.Warnf("ignoring invalid RATE_LIMIT_PER_MINUTE=%q", env)
		}
	}
	a.Limiter = ratelimit.New(time.Minute, maxPerMinute)

	a.FallbackBackendURL = cfg.FallbackBackendURL
	if env := strings.TrimSpace(os.Getenv("BACKEND_FALLBACK_URL")); env != "" {
		a.FallbackBackendURL = env
	}

	a.Context = ctx
	return ctx, nil
}

func (a *App) Close() {
	a.cleanupOnce.Do(func() {
		// call cleanup funcs in reverse order
		for i := len(a.cleanup) - 1; i >= 0; i-- {
			if err := a.cleanup[i](); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to clean up: %v\n", err)
			}
		}
	})
}

func (a *App) AddCleanup(f func() error) {
	a.cleanup = append(a.cleanup, f)
}

// getStoragePath calculates the storage path for the application (~/.appName).
func getStoragePath(appName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "."+appName), nil
}

// getRuntimePath calculates the runtime path for the application.
// Prefers XDG_RUNTIME_DIR, falls back to /tmp/appName-USER.
func getRuntimePath(appName string) (string, error) {
	// prefer XDG_RUNTIME_DIR (typically /run/user/UID)
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, appName), nil
	}

	// fallback for non-systemd systems
	// include username to avoid conflicts in shared /tmp
	username := os.Getenv("USER")
	if username == "" {
		u, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("cannot determine current user: %w", err)
		}
		username = u.Username
	}

	return filepath.Join("/tmp", appName+"-"+username), nil
}

func getBaseURL(cfg *database.Configuration) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if cfg.ProxyPort != 0 {
		port = cfg.ProxyPort
	}
	scheme := "http"
	if port == 443 {
		scheme = "https"
	}
	if port == 80 || port == 443 {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}
