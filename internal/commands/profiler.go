package commands

import (
	"context"
	"time"

	"github.com/colonyops/waypoint/internal/core/logging"
	"github.com/colonyops/waypoint/pkg/profiler"
)

// startProfiler serves pprof when --profiler-port is set. The returned
// function stops it.
func startProfiler(ctx context.Context, port int) (func(), error) {
	if port <= 0 {
		return func() {}, nil
	}

	log := logging.Component("profiler")
	srv := profiler.New(port, log)
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown profiler server")
		}
	}, nil
}
