package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rzbill/driftq/internal/config"
	"github.com/rzbill/driftq/internal/runtime"
	httpserver "github.com/rzbill/driftq/internal/server/http"
	logpkg "github.com/rzbill/driftq/pkg/log"
)

type Options struct {
	HTTPAddr string
	Config   config.Config
}

// Run opens the runtime, serves the HTTP API, and blocks until ctx is
// cancelled or the listener fails.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers that
	// pass a plain context still get SIGINT/SIGTERM handling.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.HTTPAddr == "" {
		opts.HTTPAddr = opts.Config.HTTP.Addr
	}

	rt, err := runtime.Open(opts.Config)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger := rt.Logger()
	logger.Info("starting driftq server",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("backend", opts.Config.Backend),
	)

	hsrv := httpserver.New(rt)
	errCh := make(chan error, 1)
	go func() { errCh <- hsrv.ListenAndServe(sctx, opts.HTTPAddr) }()

	select {
	case <-sctx.Done():
		hsrv.Close()
		<-errCh
		logger.Info("driftq server stopped")
		return nil
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", logpkg.Err(err))
		}
		return err
	}
}
