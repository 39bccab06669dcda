package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/apiclient"
	"github.com/berrythewa/clipkeep/internal/config"
	"github.com/berrythewa/clipkeep/internal/daemon"
	"github.com/berrythewa/clipkeep/internal/token"
)

// Annotation marking commands that run the daemon in-process.
const DaemonAnnotation = "clipkeep/daemon"

// Shared variables across all commands
var (
	cfg       *config.Config
	zapLogger *zap.Logger
	noColor   bool

	// newClient is swapped in tests
	newClient = defaultClient
)

// SetConfig sets the configuration for commands
func SetConfig(config *config.Config) {
	cfg = config
}

func GetConfig() *config.Config {
	return cfg
}

// SetZapLogger sets the logger for commands
func SetZapLogger(log *zap.Logger) {
	zapLogger = log
}

// SetNoColor disables colors and icons in formatted output.
func SetNoColor(v bool) {
	noColor = v
}

func GetZapLogger() *zap.Logger {
	if zapLogger == nil {
		return zap.NewNop()
	}
	return zapLogger
}

// APIClient is the subset of the daemon API the commands use.
type APIClient interface {
	Status(ctx context.Context) (*apiclient.Status, error)
	List(ctx context.Context) ([]apiclient.Item, error)
	Get(ctx context.Context, id string) (*apiclient.Item, error)
	Create(ctx context.Context, item apiclient.NewItem) (*apiclient.Created, error)
	Delete(ctx context.Context, id string) error
	TogglePin(ctx context.Context, id string) (bool, error)
	Copy(ctx context.Context, id string) error
	Paste(ctx context.Context, id string) (*apiclient.PasteResult, error)
	PasteCurrent(ctx context.Context) (*apiclient.PasteResult, error)
	Reveal(ctx context.Context, id string) (*apiclient.Revealed, error)
	Search(ctx context.Context, q string) ([]apiclient.Item, error)
	Screenshots(ctx context.Context) ([]apiclient.Screenshot, error)
	ScreenshotImage(ctx context.Context, id string) ([]byte, error)
}

func defaultClient() (APIClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if !cfg.API.Enabled {
		return nil, fmt.Errorf("the automation API is disabled (api.enabled in %s)", cfg.SystemPaths.ConfigFile)
	}
	tok, err := tokenManager().Token()
	if err != nil {
		return nil, fmt.Errorf("failed to load API token: %w", err)
	}
	return apiclient.New(cfg.API.Port, tok, GetZapLogger()), nil
}

func tokenManager() *token.Manager {
	return token.NewManager(daemon.NewTokenStore(cfg), GetZapLogger())
}
