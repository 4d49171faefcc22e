package main

import (
	"context"
	"flag"
	"os"

	"github.com/meshlog/oplogsync/internal/ctl"
)

func main() {
	keyPath := flag.String("k", "./identity.key", "path to the identity key file")
	flag.Parse()

	app := ctl.New(*keyPath, os.Stdin, os.Stdout)
	app.Root(context.Background())
}
