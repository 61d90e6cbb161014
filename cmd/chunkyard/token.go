package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/middlewares/authentication"
	"github.com/the127/chunkyard/internal/services/clock"
)

func printToken(arguments []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "chunkyard-cli", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")

	err := fs.Parse(arguments)
	if err != nil {
		return err
	}

	token, err := authentication.IssueToken(config.C.Server.Auth, *subject, *ttl, clock.NewClockService().Now())
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	fmt.Println(token)
	return nil
}
