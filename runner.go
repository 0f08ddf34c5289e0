package bridge

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
)

// Run parses args, builds the service and serves until interrupted.
func Run(args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, err := New(ctx, options)
	if err != nil {
		return err
	}
	defer service.Shutdown(context.Background())
	return service.ListenAndServe(ctx)
}
