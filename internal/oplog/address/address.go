// Package address parses and renders database addresses of the form
// /orbitdb/<base58-CID>[/<name>] (spec.md §6).
package address

import (
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/meshlog/oplogsync/internal/common"
)

const protocolPrefix = "/orbitdb/"

// Address is a parsed database address.
type Address struct {
	Protocol string
	Hash     cid.Cid
	Name     string
	raw      string
}

// String returns the address string exactly as it was given to Parse.
func (a Address) String() string {
	return a.raw
}

// IsValid reports whether s parses as a valid address without
// returning the parse error.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Parse parses a database address string. It fails with
// ErrInvalidAddress unless s starts with /orbitdb/ and the first path
// segment after that prefix parses as a content-identifier.
func Parse(s string) (Address, error) {
	if !strings.HasPrefix(s, protocolPrefix) {
		return Address{}, fmt.Errorf("%w: %q does not start with %s", common.ErrInvalidAddress, s, protocolPrefix)
	}

	rest := strings.TrimPrefix(s, protocolPrefix)
	if rest == "" {
		return Address{}, fmt.Errorf("%w: %q has no content-identifier segment", common.ErrInvalidAddress, s)
	}

	var hashSegment, name string
	if idx := strings.Index(rest, "/"); idx >= 0 {
		hashSegment = rest[:idx]
		name = rest[idx+1:]
	} else {
		hashSegment = rest
	}

	c, err := cid.Decode(hashSegment)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q is not a valid content-identifier: %v", common.ErrInvalidAddress, hashSegment, err)
	}

	return Address{
		Protocol: "orbitdb",
		Hash:     c,
		Name:     name,
		raw:      s,
	}, nil
}
