package ctl

import (
	"context"
	"fmt"

	"github.com/meshlog/oplogsync/internal/oplog/manifest"
)

// cmdManifest creates a manifest with the given name, database type
// and access controller type, stores it in the scratch store, and
// prints the resulting database address (spec.md §6).
func (a *App) cmdManifest(ctx context.Context, args []string) {
	if len(args) != 3 {
		a.printf("Usage: manifest <name> <type> <access-controller>\n")
		return
	}

	m, err := manifest.Create(args[0], args[1], args[2], nil)
	if err != nil {
		a.printf("manifest: %v\n", err)
		return
	}

	stored, err := manifest.Store(ctx, a.codec, a.store, m, a.dialect)
	if err != nil {
		a.printf("manifest: store: %v\n", err)
		return
	}

	a.printf("manifest: stored %s\n", stored.Hash)
	a.printf("address:  %s\n", fmt.Sprintf("/orbitdb/%s/%s", stored.Hash, stored.Name))
}
