package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/giantswarm/discord-oauth/pkg/logging"
)

// shutdownTimeout bounds how long in-flight requests may take to finish.
const shutdownTimeout = 10 * time.Second

// runServer serves HTTP until ctx is cancelled or a SIGINT/SIGTERM arrives.
//
// When started by systemd with Type=notify, READY=1 is sent once the
// listener is open and STOPPING=1 when shutdown begins.
func runServer(ctx context.Context, services *Services) error {
	defer func() {
		if err := services.Close(); err != nil {
			logging.Warn("Server", "Failed to release services: %v", err)
		}
	}()

	ln, err := services.Server.Listen()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- services.Server.Serve(ln)
	}()
	notifySystemd(daemon.SdNotifyReady)

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logging.Info("Server", "Shutting down")
	notifySystemd(daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := services.Server.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server", err, "Graceful shutdown did not complete")
		return err
	}
	return <-serveErr
}

func notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	switch {
	case err != nil:
		logging.Warn("Server", "Failed to notify systemd (%s): %v", state, err)
	case sent:
		logging.Debug("Server", "Notified systemd: %s", state)
	}
}
