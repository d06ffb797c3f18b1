package coordinator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leusonmario/xtreemfs/cmn"
	"github.com/leusonmario/xtreemfs/internal/xlog"
)

// fanoutResult is the aggregated outcome of the invalidate fan-out: whether
// any OSD self-identified as primary, how many responded at all, and the
// per-replica status each successful response carried.
type fanoutResult struct {
	primaryResponded bool
	responseCount    int
	statuses         []cmn.ReplicaStatus
}

// invalidateFanout issues invalidate against every OSD in the CURRENT
// XLocSet, in list order: these are the old replicas that may still think
// they serve client I/O under the pre-reconfiguration policy. Newly added
// replicas hold nothing to invalidate; they are reached later, if at all,
// by priming. Transport errors on individual OSDs are logged and the OSD is
// treated as "no status"; they never abort the phase, mirroring
// reb.Manager.bcast's per-target error tolerance.
func (m *Manager) invalidateFanout(ctx context.Context, cur *cmn.XLocSet, creds *cmn.Capability, fileID string) fanoutResult {
	var (
		mu  sync.Mutex
		res fanoutResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, xloc := range cur.Replicas {
		osdAddr := xloc.Head()
		g.Go(func() error {
			resp, err := m.osd.Invalidate(gctx, osdAddr, creds, fileID)
			if err != nil {
				xlog.Warningf("invalidate fanout: osd=%s file=%s: %v", osdAddr, fileID, err)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			res.responseCount++
			if resp.IsPrimary {
				res.primaryResponded = true
			}
			if resp.Status != nil {
				res.statuses = append(res.statuses, *resp.Status)
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return a non-nil error; Wait only joins them
	return res
}

// primeNewReplicas triggers replication priming (§4.E PRIME-NEW-REPLICAS)
// against each newly added replica by issuing readProbe at its head OSD.
// Unlike the invalidate fan-out, a priming failure aborts the
// reconfiguration: an unprimed replica cannot count toward quorum.
func (m *Manager) primeNewReplicas(ctx context.Context, targets []cmn.XLoc, creds *cmn.Capability, fileID string) error {
	for _, x := range targets {
		osdAddr := x.Head()
		if osdAddr == "" {
			continue
		}
		if err := m.osd.ReadProbe(ctx, osdAddr, creds, fileID, 0, 0, 0, 1); err != nil {
			return cmn.NewTransportError(osdAddr, err)
		}
	}
	return nil
}

// leaseWait sleeps for the configured lease timeout. It returns true only
// when the coordinator is shutting down: per §5, an interrupt during the
// lease-wait sleep does not shorten the wait unless shutdown is set, and
// shutdown is the only interrupt source this worker has.
func (m *Manager) leaseWait() (shutdown bool) {
	cfg := cmn.GCO.Get()
	select {
	case <-time.After(cfg.LeaseTimeout()):
		return false
	case <-m.quit:
		return true
	}
}
