package simulate

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/leusonmario/xtreemfs/cmn"
	"github.com/leusonmario/xtreemfs/internal/capability"
	"github.com/leusonmario/xtreemfs/internal/coordinator"
	"github.com/leusonmario/xtreemfs/internal/metabridge"
	"github.com/leusonmario/xtreemfs/internal/osdclient"
)

// Run executes every scenario in scenarios() against a fresh in-memory
// coordinator and reports pass/fail to stdout. It returns an error if any
// scenario's observed outcome does not match its expectation, so the exit
// code reflects the result for scripting.
func Run() error {
	prevCfg := cmn.GCO.Get()
	shortLease := *prevCfg
	shortLease.LeaseTimeoutMs = 200
	cmn.GCO.Put(&shortLease)
	defer cmn.GCO.Put(prevCfg)

	failures := 0
	for _, s := range scenarios() {
		ok, detail, err := runOne(s)
		status := "PASS"
		if !ok {
			status = "FAIL"
			failures++
		}
		fmt.Printf("[%s] %-30s %s\n", status, s.name, s.description)
		if detail != "" {
			fmt.Printf("         %s\n", detail)
		}
		if err != nil {
			fmt.Printf("         error: %v\n", err)
		}
	}

	if failures > 0 {
		return fmt.Errorf("simulate: %d scenario(s) failed", failures)
	}
	return nil
}

func runOne(s scenario) (ok bool, detail string, runErr error) {
	transport := newMemTransport()
	for osd, st := range s.statuses {
		stCopy := st
		transport.status[osd] = &stCopy
	}
	for _, osd := range s.silent {
		transport.silent[osd] = true
	}

	dir, err := os.MkdirTemp("", "xlocsetd-simulate-*")
	if err != nil {
		return false, "", err
	}
	defer os.RemoveAll(dir)

	bridge, err := metabridge.NewBridge(dir)
	if err != nil {
		return false, "", err
	}
	defer bridge.Close()
	if s.guardDenies {
		bridge.Guard = func(string, *cmn.XLocSet) error {
			return cmn.NewPermissionDenied("simulated authorization denial")
		}
	}

	mgr := coordinator.NewManager(osdclient.New(transport), capability.NewBuilder(), bridge)
	mgr.Start()
	defer mgr.Stop()

	handle := mgr.Submit(requestFor(s))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	installed, err := handle.Wait(ctx)

	if s.wantErrKind == "" {
		if err != nil {
			return false, "expected success", err
		}
		return true, fmt.Sprintf("installed version %d, primed %v", installed.Version, transport.probedOSDs()), nil
	}

	if err == nil {
		return false, fmt.Sprintf("expected error kind %s, got success", s.wantErrKind), nil
	}
	if !cmn.IsKind(err, s.wantErrKind) {
		return false, fmt.Sprintf("expected error kind %s", s.wantErrKind), err
	}
	return true, fmt.Sprintf("rejected as expected (%s)", s.wantErrKind), nil
}
