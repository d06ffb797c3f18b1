package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/leusonmario/xtreemfs/cmn"
	"github.com/leusonmario/xtreemfs/internal/osdclient"
)

// fakeOSD is a scripted OSDClient: per-OSD canned Invalidate responses (or
// errors standing in for a silent/unreachable replica), and a record of
// every ReadProbe call for assertions on priming.
type fakeOSD struct {
	mu sync.Mutex

	invalidateResp map[string]*osdclient.InvalidateResponse
	invalidateErr  map[string]error
	probed         []string
}

func newFakeOSD() *fakeOSD {
	return &fakeOSD{
		invalidateResp: map[string]*osdclient.InvalidateResponse{},
		invalidateErr:  map[string]error{},
	}
}

func (f *fakeOSD) Invalidate(_ context.Context, osdAddr string, _ *cmn.Capability, _ string) (*osdclient.InvalidateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.invalidateErr[osdAddr]; ok {
		return nil, err
	}
	if resp, ok := f.invalidateResp[osdAddr]; ok {
		return resp, nil
	}
	return &osdclient.InvalidateResponse{}, nil
}

func (f *fakeOSD) ReadProbe(_ context.Context, osdAddr string, _ *cmn.Capability, _ string, _, _ uint64, _, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, osdAddr)
	return nil
}

func (f *fakeOSD) probedOSDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.probed))
	copy(out, f.probed)
	return out
}

// fakeCaps always succeeds with a minimal capability unless forced to fail.
type fakeCaps struct {
	err error
}

func (f *fakeCaps) Build(fileID string, epoch int64) (*cmn.Capability, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &cmn.Capability{FileID: fileID, Epoch: epoch}, nil
}

// fakeBridge is an in-memory MetadataBridge: per-file version counter plus
// an ordered log of install calls, so tests can assert serialization (P5)
// and no-install-on-failure (P7).
type fakeBridge struct {
	mu       sync.Mutex
	versions map[string]int64
	calls    []string
	guard    func(fileID string, ext *cmn.XLocSet) error
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{versions: map[string]int64{}}
}

func (f *fakeBridge) Install(_ context.Context, fileID string, ext *cmn.XLocSet) (*cmn.XLocSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.guard != nil {
		if err := f.guard(fileID, ext); err != nil {
			return nil, err
		}
	}

	current := f.versions[fileID]
	if ext.Version != current {
		return nil, cmn.NewInsufficientQuorum("stale version")
	}
	installed := ext.Clone()
	installed.Version = current + 1
	f.versions[fileID] = installed.Version
	f.calls = append(f.calls, fileID)
	return installed, nil
}

func (f *fakeBridge) installCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errFakeTransport = errors.New("fake transport: unreachable")
