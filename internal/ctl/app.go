// Package ctl implements the REPL behind cmd/oplogctl: identity
// generation and unlock, a local create-then-verify smoke test for a
// keypair, address parsing, and manifest creation. It mirrors the
// teacher's internal/client/cli.App prompt loop (root.go), trimmed to
// the operations a local oplog-core operator actually needs.
package ctl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/oplog"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
	"github.com/meshlog/oplogsync/internal/oplog/identity"
	"github.com/meshlog/oplogsync/internal/storage/blockstore"
)

// App is the ctl REPL's state: an identity (once unlocked or
// generated) and the scratch log and store it uses for the smoke
// test and manifest subcommands.
type App struct {
	keyPath string
	codec   codec.Codec
	dialect dialect.Dialect

	provider identity.Provider
	store    oplog.BlockStore
	log      *oplog.Log

	in  *bufio.Reader
	out io.Writer
}

// New builds an App that keeps its identity at keyPath and uses an
// in-memory block store and log, the same way the smoke test and
// manifest subcommands need only local, ephemeral storage.
func New(keyPath string, in io.Reader, out io.Writer) *App {
	return &App{
		keyPath: keyPath,
		codec:   codec.NewIPLDCBORCodec(),
		dialect: dialect.V2,
		store:   blockstore.NewMemoryStore(),
		in:      bufio.NewReader(in),
		out:     out,
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// Root runs the prompt loop until the user exits or input is
// exhausted, the same shape as the teacher's App.Root.
func (a *App) Root(ctx context.Context) {
	a.printf("oplogctl (type 'help' for commands)\n")
	scanner := bufio.NewScanner(a.in)

	for {
		a.printf("oplogctl> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd, args := parts[0], parts[1:]
		switch cmd {
		case "help":
			a.printf("Available commands: identity, unlock, smoketest, address, manifest, exit\n")
		case "identity":
			a.cmdIdentity(ctx)
		case "unlock":
			a.cmdUnlock(ctx)
		case "smoketest":
			a.cmdSmokeTest(ctx)
		case "address":
			a.cmdAddress(args)
		case "manifest":
			a.cmdManifest(ctx, args)
		case "exit", "quit":
			a.printf("Bye!\n")
			return
		default:
			a.printf("Unknown command: %s\n", cmd)
		}
	}
}
