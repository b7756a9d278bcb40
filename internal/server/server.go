package server

import (
	"context"
	"fmt"
	"time"

	"github.com/Syn1ak/notes-api-autotest/internal/config"
	"github.com/Syn1ak/notes-api-autotest/internal/store"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

const shutdownTimeout = 10 * time.Second

type Server interface {
	Run(done chan<- error)
	End(ctx context.Context) error
}

// CreateAndStartServer runs the HTTP API and the health server until ctx
// is cancelled or one of them fails, then stops both. With Consul enabled
// the service is registered once both are started and deregistered first
// on the way down.
func CreateAndStartServer(ctx context.Context, cfg *config.Config, s store.Store, logger hclog.Logger) error {
	handler := NewNoteHandler(s, logger.Named("http"))
	router := NewRouter(RouterOptions{CORSEnabled: cfg.CORSEnabled}, handler, logger.Named("http"))

	servers := []Server{
		NewHealthServer(cfg.HealthPort, cfg.Consul.ServiceName, logger.Named("health")),
		NewHTTPServer(fmt.Sprintf(":%d", cfg.Port), router, logger.Named("http")),
	}

	done := make(chan error, len(servers))
	for _, srv := range servers {
		go srv.Run(done)
	}

	var reg *RegisterServer
	if cfg.Consul.Enabled {
		var err error
		reg, err = newRegisterServer(nil, cfg.Consul.ServiceID, cfg.Consul.ServiceName, cfg.Consul.Addr, cfg.Port, cfg.HealthPort, logger.Named("consul"))
		if err == nil {
			err = reg.Register()
		}
		if err != nil {
			return multierror.Append(err, stopAll(servers, nil))
		}
	}

	logger.Info("application successfully started", "port", cfg.Port, "url", fmt.Sprintf("http://localhost:%d", cfg.Port))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-done:
	}

	var result *multierror.Error
	if runErr != nil {
		result = multierror.Append(result, runErr)
	}
	if err := stopAll(servers, reg); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func stopAll(servers []Server, reg *RegisterServer) error {
	var result *multierror.Error
	if reg != nil {
		if err := reg.Deregister(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].End(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
