package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/The127/ioc"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/server"
	"github.com/the127/chunkyard/internal/setup"
	"github.com/the127/chunkyard/internal/utils"
)

func serve() error {
	dc := ioc.NewDependencyCollection()

	setup.Clock(dc)
	closeKv := setup.Kv(dc, config.C.Kv)
	defer utils.PanicOnError(closeKv, "closing kv store")

	database := setup.Database(dc, config.C.Database)
	defer utils.PanicOnError(database.Close, "closing database")

	setup.Blob(dc, config.C.Blob)
	setup.Mediator(dc)

	dp := dc.BuildProvider()

	srv := server.Serve(dp, config.C.Server)
	waitForExit()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := server.Shutdown(ctx, srv)
	if err != nil {
		logging.Logger.Warnf("server did not shut down cleanly: %s", err)
	}

	return nil
}

func waitForExit() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
