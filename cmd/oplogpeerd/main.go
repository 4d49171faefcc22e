package main

import (
	"context"
	"log"
	"os"

	"github.com/meshlog/oplogsync/internal/config"
	"github.com/meshlog/oplogsync/internal/peerd"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	passphrase := []byte(os.Getenv("OPLOGPEERD_PASSPHRASE"))

	app, err := peerd.New(ctx, cfg, passphrase)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
