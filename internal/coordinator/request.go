package coordinator

import (
	"context"

	"github.com/leusonmario/xtreemfs/cmn"
)

// Request is a queued request method (§3 DATA MODEL): a tagged union over
// RequestKind with kind-specific arguments. From the moment it is dequeued
// until it reports success or failure, a Request is owned exclusively by
// the coordinator worker.
type Request struct {
	Kind   cmn.RequestKind
	FileID string
	Epoch  int64

	// CurXLocSet is the canonical set the caller observed before preparing
	// the change; ExtXLocSet is the proposed replacement, carrying the same
	// version (the bridge bumps it on install). NewXLocs is the suffix of
	// ExtXLocSet not present in CurXLocSet.
	CurXLocSet *cmn.XLocSet
	ExtXLocSet *cmn.XLocSet
	NewXLocs   []cmn.XLoc

	reply chan Result
}

// Result is what a Request resolves to: either the newly installed XLocSet
// or a structured error per §7.
type Result struct {
	Installed *cmn.XLocSet
	Err       error
}

// RequestHandle is returned by Manager.Submit. Waiting on it is the
// future/channel model the design note in §9 calls for in place of nested
// callbacks.
type RequestHandle struct {
	done chan Result
}

// Wait blocks for the protocol's outcome, or until ctx is done.
func (h *RequestHandle) Wait(ctx context.Context) (*cmn.XLocSet, error) {
	select {
	case res := <-h.done:
		return res.Installed, res.Err
	case <-ctx.Done():
		return nil, cmn.NewShutdownError()
	}
}
