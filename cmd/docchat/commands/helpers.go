package commands

import (
	"context"
	"log/slog"

	"github.com/54b3r/docchat/internal/app"
	"github.com/54b3r/docchat/internal/logging"
)

// openApp resolves settings from the environment and builds the application.
// A non-empty docsDir overrides DOCCHAT_DOCS_DIR.
func openApp(ctx context.Context, docsDir string) (*app.App, error) {
	s, err := app.SettingsFromEnv()
	if err != nil {
		return nil, err
	}
	if docsDir != "" {
		s.DocsDir = docsDir
	}
	return app.New(ctx, s, logging.FromContext(ctx))
}

// closeApp releases the application, logging rather than returning errors so
// it can be deferred.
func closeApp(ctx context.Context, a *app.App) {
	if err := a.Close(); err != nil {
		logging.FromContext(ctx).Warn("shutdown incomplete", slog.String("error", err.Error()))
	}
}
