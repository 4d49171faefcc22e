package ctl

import (
	"context"

	"github.com/meshlog/oplogsync/internal/oplog"
	"github.com/meshlog/oplogsync/internal/oplog/entry"
)

// cmdSmokeTest exercises a loaded identity end to end: it creates a
// single entry in a scratch log, then independently re-verifies the
// signature entry.Verify never trusts a cached verdict for. Use this
// right after identity/unlock to confirm a keypair actually works
// before handing it to a running peer.
func (a *App) cmdSmokeTest(ctx context.Context) {
	if a.provider == nil {
		a.printf("smoketest: no identity loaded, run identity or unlock first\n")
		return
	}
	if a.log == nil {
		a.log = oplog.New("smoketest", a.store, a.codec, a.dialect)
	}

	e, err := oplog.Create(ctx, a.log, a.codec, a.provider, map[string]any{"hello": "world"}, entry.CreateOptions{})
	if err != nil {
		a.printf("smoketest: create: %v\n", err)
		return
	}

	ok, err := entry.Verify(ctx, a.provider, a.codec, e)
	if err != nil {
		a.printf("smoketest: verify: %v\n", err)
		return
	}
	if !ok {
		a.printf("smoketest: entry %s did not verify\n", e.Hash)
		return
	}
	a.printf("smoketest: created and verified entry %s\n", e.Hash)
}
