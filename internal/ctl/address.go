package ctl

import "github.com/meshlog/oplogsync/internal/oplog/address"

// cmdAddress parses an address given as the command's sole argument
// and prints its components, or reports why it doesn't parse.
func (a *App) cmdAddress(args []string) {
	if len(args) != 1 {
		a.printf("Usage: address /orbitdb/<hash>[/<name>]\n")
		return
	}

	addr, err := address.Parse(args[0])
	if err != nil {
		a.printf("address: %v\n", err)
		return
	}

	a.printf("protocol: %s\n", addr.Protocol)
	a.printf("hash:     %s\n", addr.Hash.String())
	if addr.Name != "" {
		a.printf("name:     %s\n", addr.Name)
	}
}
