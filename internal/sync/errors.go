package sync

import (
	"errors"
	"fmt"

	"github.com/meshlog/oplogsync/internal/common"
)

// isTolerated reports whether a dial failure is expected background
// noise (the remote peer simply doesn't speak the direct-channel
// protocol) rather than something worth surfacing on the event sink.
func isTolerated(err error) bool {
	return errors.Is(err, common.ErrUnsupportedProtocol)
}

func errHashMismatchFor(claimed, recomputed string) error {
	return fmt.Errorf("%w: claimed %q, recomputed %q", common.ErrHashMismatch, claimed, recomputed)
}
