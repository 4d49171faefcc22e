package ctl

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/meshlog/oplogsync/internal/oplog/identity"
	"github.com/meshlog/oplogsync/internal/shared"
)

// readPassword is a test seam for term.ReadPassword, the same pattern
// the teacher's internal/client/cli uses.
var readPassword = term.ReadPassword

// getPassword prompts on w and reads a password from the controlling
// terminal without echoing it.
func getPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// cmdIdentity generates a fresh Ed25519 identity, saves it encrypted
// under a to-be-entered passphrase, and reports its public key.
func (a *App) cmdIdentity(ctx context.Context) {
	passphrase, err := getPassword(a.out, "New passphrase: ")
	if err != nil {
		a.printf("identity: %v\n", err)
		return
	}
	defer shared.WipeByteArray(passphrase)

	provider, err := identity.GenerateEd25519Provider()
	if err != nil {
		a.printf("identity: %v\n", err)
		return
	}

	if err := identity.SaveEncrypted(a.keyPath, provider.PrivateKey(), passphrase); err != nil {
		a.printf("identity: save: %v\n", err)
		return
	}

	id, _ := provider.Identity(ctx)
	a.provider = provider
	a.log = nil
	a.printf("generated identity, public key %s\n", id.PublicKey)
}

// cmdUnlock decrypts the identity key at keyPath with an entered
// passphrase and loads it into the REPL's state.
func (a *App) cmdUnlock(ctx context.Context) {
	passphrase, err := getPassword(a.out, "Passphrase: ")
	if err != nil {
		a.printf("unlock: %v\n", err)
		return
	}
	defer shared.WipeByteArray(passphrase)

	priv, err := identity.LoadEncrypted(a.keyPath, passphrase)
	if err != nil {
		a.printf("unlock: %v\n", err)
		return
	}

	provider, err := identity.NewEd25519Provider(priv)
	if err != nil {
		a.printf("unlock: %v\n", err)
		return
	}

	id, _ := provider.Identity(ctx)
	a.provider = provider
	a.log = nil
	a.printf("unlocked identity, public key %s\n", id.PublicKey)
}
