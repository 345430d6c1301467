package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/lidx/internal/repositories"
	"github.com/desertthunder/lidx/internal/server"
	"github.com/desertthunder/lidx/internal/services"
	"github.com/desertthunder/lidx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the backend until the command context is cancelled.
//
// Status & retry go to Lidarr, suggestions to MusicBrainz, and retry attempts are recorded in the database.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.configFor(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("host") {
		config.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		config.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("token") {
		config.Server.Token = cmd.String("token")
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	lidarr, err := services.NewLidarrService(config.Lidarr, r.httpClient, shared.WithLogger(r.logger, "component", "lidarr"))
	if err != nil {
		return err
	}
	musicbrainz := services.NewMusicBrainzService(config.MusicBrainz, r.httpClient, shared.WithLogger(r.logger, "component", "musicbrainz"))

	library := services.NewLibraryService(lidarr, musicbrainz, repositories.NewRetryRepository(db), r.logger)

	router := server.NewRouter(server.Options{
		Status:      library,
		Suggestions: library,
		Token:       config.Server.Token,
		Search:      config.Search,
		Version:     version,
		Logger:      shared.WithLogger(r.logger, "component", "http"),
	})

	if config.Server.Token == "" {
		r.logger.Warn("server.token is empty, /api routes are unauthenticated")
	}

	return server.New(config.Server.Addr(), router, r.logger).ListenAndServe(ctx)
}
