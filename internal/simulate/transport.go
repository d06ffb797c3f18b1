// Package simulate runs the coordinator end-to-end against an in-memory OSD
// transport instead of a live cluster, grounded on bench/soaktest's
// self-contained exerciser shape: no external dependency, deterministic
// input, a small report at the end.
package simulate

import (
	"context"
	"fmt"
	"sync"

	"github.com/leusonmario/xtreemfs/cmn"
	"github.com/leusonmario/xtreemfs/internal/osdclient"
)

// memTransport is an osdclient.Transport backed by canned per-OSD state
// instead of a socket. silent lists OSDs that never answer invalidate.
type memTransport struct {
	mu      sync.Mutex
	status  map[string]*cmn.ReplicaStatus
	silent  map[string]bool
	primary string
	probed  []string
}

func newMemTransport() *memTransport {
	return &memTransport{
		status: map[string]*cmn.ReplicaStatus{},
		silent: map[string]bool{},
	}
}

func (t *memTransport) Invalidate(_ context.Context, osdAddr string, _ *cmn.Capability, _ string) (*osdclient.InvalidateResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.silent[osdAddr] {
		return nil, fmt.Errorf("osd %s: unreachable", osdAddr)
	}
	return &osdclient.InvalidateResponse{
		IsPrimary: osdAddr == t.primary,
		Status:    t.status[osdAddr],
	}, nil
}

func (t *memTransport) ReadProbe(_ context.Context, osdAddr string, _ *cmn.Capability, _ string, _, _ uint64, _, _ int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.probed = append(t.probed, osdAddr)
	return nil
}

func (t *memTransport) ExecuteReset(_ context.Context, _ string, _ *cmn.Capability, _ *cmn.ReplicaStatus) (*cmn.AuthoritativeReplicaState, error) {
	return nil, fmt.Errorf("executeReset: not invoked by the coordinator")
}

func (t *memTransport) probedOSDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.probed))
	copy(out, t.probed)
	return out
}
