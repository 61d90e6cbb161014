package main

import (
	"fmt"
	"os"

	"github.com/the127/chunkyard/internal/args"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/logging"
)

func main() {
	args.Init()
	logging.Init()
	config.Init()

	var err error
	switch args.Command() {
	case "", "serve":
		err = serve()

	case "upload":
		err = runUpload(args.Rest())

	case "token":
		err = printToken(args.Rest())

	default:
		err = fmt.Errorf("unknown command %q, expected serve, upload or token", args.Command())
	}

	if err != nil {
		logging.Logger.Errorf("%s", err)
		os.Exit(1)
	}
}
