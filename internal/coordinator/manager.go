// Package coordinator implements the XLocSet change coordinator of §4.E,
// the heart of the design: a single dedicated worker draining a FIFO queue,
// driving invalidate -> collect -> decide -> (prime) -> install for each
// request method in turn. Grounded on reb.Manager's single-worker stage
// machine (reb/global.go) and reb/bcast.go's per-target fan-out tolerance,
// adapted from cluster rebalancing to replica-set reconfiguration.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leusonmario/xtreemfs/cmn"
	"github.com/leusonmario/xtreemfs/internal/osdclient"
	"github.com/leusonmario/xtreemfs/internal/policy"
)

// OSDClient is the subset of internal/osdclient.Client the coordinator
// drives directly, narrowed to an interface so tests inject a fake.
type OSDClient interface {
	Invalidate(ctx context.Context, osdAddr string, creds *cmn.Capability, fileID string) (*osdclient.InvalidateResponse, error)
	ReadProbe(ctx context.Context, osdAddr string, creds *cmn.Capability, fileID string, objNo, objVersion uint64, offset, length int64) error
}

// CapabilityBuilder is the subset of internal/capability.Builder the
// coordinator drives, narrowed for testability.
type CapabilityBuilder interface {
	Build(fileID string, epoch int64) (*cmn.Capability, error)
}

// MetadataBridge is the subset of internal/metabridge.Bridge the
// coordinator drives, narrowed for testability.
type MetadataBridge interface {
	Install(ctx context.Context, fileID string, ext *cmn.XLocSet) (*cmn.XLocSet, error)
}

// Manager is the XLocSet change coordinator. At most one reconfiguration is
// in flight at any time across the whole coordinator (§5 scheduling model).
type Manager struct {
	osd    OSDClient
	caps   CapabilityBuilder
	bridge MetadataBridge

	queue chan *Request
	quit  chan struct{}
	wg    sync.WaitGroup

	metrics *coordinatorMetrics
}

func NewManager(osd OSDClient, caps CapabilityBuilder, bridge MetadataBridge) *Manager {
	return &Manager{
		osd:     osd,
		caps:    caps,
		bridge:  bridge,
		queue:   make(chan *Request, 256),
		quit:    make(chan struct{}),
		metrics: newMetrics(),
	}
}

// Metrics exposes the coordinator's prometheus collectors for the caller to
// register with its own registry.
func (m *Manager) Metrics() *coordinatorMetrics { return m.metrics }

// Start launches the single worker goroutine. Call at most once per Manager.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.run()
}

// Stop sets the quit flag and waits for the worker to drain its in-flight
// request and exit. Per §5, partial progress on that request is acceptable;
// no protocol state is persisted across a restart.
func (m *Manager) Stop() {
	close(m.quit)
	m.wg.Wait()
}

// Submit enqueues a request method and returns a handle the caller waits on.
// Producers are never blocked by protocol work; Submit itself only blocks
// while the queue is full, and if Stop is called while it waits it returns a
// handle already resolved with a shutdown error.
func (m *Manager) Submit(req *Request) *RequestHandle {
	cmn.AssertMsg(req.ExtXLocSet.Version == req.CurXLocSet.Version,
		"submit precondition: extended XLocSet version must equal current XLocSet version")

	req.reply = make(chan Result, 1)
	select {
	case m.queue <- req:
	case <-m.quit:
		req.reply <- Result{Err: cmn.NewShutdownError()}
	}
	return &RequestHandle{done: req.reply}
}

func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.quit:
			return
		case req := <-m.queue:
			req.reply <- m.process(context.Background(), req)
		}
	}
}

func (m *Manager) process(ctx context.Context, req *Request) Result {
	start := time.Now()
	var res Result
	switch req.Kind {
	case cmn.KindAddReplicas:
		res = m.processAddReplicas(ctx, req)
	case cmn.KindRemoveReplicas, cmn.KindReplaceReplica:
		// Reserved; structurally symmetric to AddReplicas with inverse
		// quorum math (§4.E). Stubbed as not-implemented per the spec's
		// explicit allowance.
		res = Result{Err: cmn.NewInternalError(fmt.Errorf("%s: not implemented", req.Kind))}
	default:
		res = Result{Err: cmn.NewUserError("unknown request kind %v", req.Kind)}
	}

	outcome := "success"
	if res.Err != nil {
		outcome = "error"
	}
	m.metrics.requestsTotal.WithLabelValues(req.Kind.String(), outcome).Inc()
	m.metrics.observeStage("total", time.Since(start))
	return res
}

// processAddReplicas drives BUILD-CAP -> INVALIDATE-FANOUT -> COLLECT-STATES
// -> DECIDE -> (PRIME-NEW-REPLICAS if coordinated) -> INSTALL-XLOCSET, per
// §4.E's state machine diagram.
func (m *Manager) processAddReplicas(ctx context.Context, req *Request) Result {
	creds, err := m.caps.Build(req.FileID, req.Epoch)
	if err != nil {
		return Result{Err: err}
	}

	stageStart := time.Now()
	fanout := m.invalidateFanout(ctx, req.CurXLocSet, creds, req.FileID)
	m.metrics.observeStage("invalidate_fanout", time.Since(stageStart))

	invalidated := req.CurXLocSet.ReplicaCount()
	if !fanout.primaryResponded && fanout.responseCount < invalidated {
		if m.leaseWait() {
			return Result{Err: cmn.NewShutdownError()}
		}
	}

	if fanout.responseCount == 0 {
		return Result{Err: cmn.NewInsufficientQuorum("file %s: no replica responded to invalidate", req.FileID)}
	}

	p, err := policy.Lookup(req.ExtXLocSet.Policy)
	if err != nil {
		return Result{Err: err}
	}

	if policy.IsCoordinated(p.Tag) {
		outcome, err := decide(p, req.FileID, fanout.statuses, invalidated, req.ExtXLocSet, req.NewXLocs)
		if err != nil {
			return Result{Err: err}
		}
		if outcome.requiredUpdates > 0 {
			primeStart := time.Now()
			if err := m.primeNewReplicas(ctx, outcome.primeTargets, creds, req.FileID); err != nil {
				return Result{Err: err}
			}
			m.metrics.observeStage("prime_new_replicas", time.Since(primeStart))
		}
	}
	// RONLY branch: no priming is synchronously required; full replicas are
	// filled lazily by background replication.

	installed, err := m.bridge.Install(ctx, req.FileID, req.ExtXLocSet)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Installed: installed}
}
