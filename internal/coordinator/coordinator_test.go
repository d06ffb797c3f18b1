package coordinator

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/leusonmario/xtreemfs/cmn"
	"github.com/leusonmario/xtreemfs/internal/osdclient"
)

func withShortLease(d time.Duration) func() {
	prev := cmn.GCO.Get()
	next := *prev
	next.LeaseTimeoutMs = int64(d / time.Millisecond)
	cmn.GCO.Put(&next)
	return func() { cmn.GCO.Put(prev) }
}

func newTestManager() (*Manager, *fakeOSD, *fakeBridge) {
	osd := newFakeOSD()
	bridge := newFakeBridge()
	m := NewManager(osd, &fakeCaps{}, bridge)
	m.Start()
	return m, osd, bridge
}

var _ = Describe("Manager", func() {
	var (
		m      *Manager
		osd    *fakeOSD
		bridge *fakeBridge
	)

	BeforeEach(func() {
		m, osd, bridge = newTestManager()
	})

	AfterEach(func() {
		m.Stop()
	})

	// §8 scenario 1: RONLY add, 3 -> 5, all three current replicas respond.
	// No lease-wait (responseCount=3=invalidated), no priming (RONLY is the
	// lazy-fill branch), install succeeds at version+1.
	It("installs without lease-wait or priming for a RONLY add with full response", func() {
		cur := &cmn.XLocSet{
			Replicas: []cmn.XLoc{{OSDs: []string{"A"}}, {OSDs: []string{"B"}}, {OSDs: []string{"C"}}},
			Policy:   cmn.PolicyRONLY,
			Version:  7,
		}
		ext := cur.Clone()
		ext.Replicas = append(ext.Replicas, cmn.XLoc{OSDs: []string{"D"}}, cmn.XLoc{OSDs: []string{"E"}})
		bridge.versions["f1"] = 7

		req := &Request{
			Kind:       cmn.KindAddReplicas,
			FileID:     "f1",
			Epoch:      1,
			CurXLocSet: cur,
			ExtXLocSet: ext,
			NewXLocs:   []cmn.XLoc{{OSDs: []string{"D"}}, {OSDs: []string{"E"}}},
		}
		handle := m.Submit(req)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		installed, err := handle.Wait(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(installed.Version).To(Equal(int64(8)))
		Expect(osd.probedOSDs()).To(BeEmpty())
		Expect(bridge.installCount()).To(Equal(1))
	})

	// §8 scenario 2: WqRq add, 3 -> 5, all three current replicas respond
	// holding object 0 at version 4. minMajority=3, requiredRead=2 (computed
	// against the current replica count of 3), requiredUpdates=1: exactly one
	// of the two new replicas (the last one in list order) must be primed.
	It("primes the tail new replica for a coordinated WqRq add", func() {
		cur := &cmn.XLocSet{
			Replicas: []cmn.XLoc{{OSDs: []string{"A"}}, {OSDs: []string{"B"}}, {OSDs: []string{"C"}}},
			Policy:   cmn.PolicyWqRq,
			Version:  2,
		}
		ext := cur.Clone()
		ext.Replicas = append(ext.Replicas, cmn.XLoc{OSDs: []string{"D"}}, cmn.XLoc{OSDs: []string{"E"}})
		bridge.versions["f2"] = 2

		for _, osdID := range []string{"A", "B", "C"} {
			osd.invalidateResp[osdID] = &osdclient.InvalidateResponse{
				Status: &cmn.ReplicaStatus{OSDUUID: osdID, ObjectVersions: map[uint64]uint64{0: 4}},
			}
		}

		req := &Request{
			Kind:       cmn.KindAddReplicas,
			FileID:     "f2",
			Epoch:      1,
			CurXLocSet: cur,
			ExtXLocSet: ext,
			NewXLocs:   []cmn.XLoc{{OSDs: []string{"D"}}, {OSDs: []string{"E"}}},
		}
		handle := m.Submit(req)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		installed, err := handle.Wait(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(installed.Version).To(Equal(int64(3)))
		Expect(osd.probedOSDs()).To(Equal([]string{"E"}))
		Expect(bridge.installCount()).To(Equal(1))
	})

	// §8 scenario 3 (renumbered with internally-consistent math, see
	// DESIGN.md): WaR1 add, 3 -> 4, B is silent. responseCount=2 <
	// invalidated=3 and no primary responded, so the coordinator sleeps for
	// the lease timeout before proceeding. minMajority=2, requiredRead=3
	// (against the current count of 3), requiredUpdates=0: no priming
	// needed, install still succeeds once the lease has been waited out.
	It("lease-waits then proceeds when a current replica is silent", func() {
		restore := withShortLease(20 * time.Millisecond)
		defer restore()

		cur := &cmn.XLocSet{
			Replicas: []cmn.XLoc{{OSDs: []string{"A"}}, {OSDs: []string{"B"}}, {OSDs: []string{"C"}}},
			Policy:   cmn.PolicyWaR1,
			Version:  5,
		}
		ext := cur.Clone()
		ext.Replicas = append(ext.Replicas, cmn.XLoc{OSDs: []string{"D"}})
		bridge.versions["f3"] = 5

		osd.invalidateErr["B"] = errFakeTransport
		osd.invalidateResp["A"] = &osdclient.InvalidateResponse{
			Status: &cmn.ReplicaStatus{OSDUUID: "A", ObjectVersions: map[uint64]uint64{0: 1}},
		}
		osd.invalidateResp["C"] = &osdclient.InvalidateResponse{
			Status: &cmn.ReplicaStatus{OSDUUID: "C", ObjectVersions: map[uint64]uint64{0: 1}},
		}

		req := &Request{
			Kind:       cmn.KindAddReplicas,
			FileID:     "f3",
			Epoch:      1,
			CurXLocSet: cur,
			ExtXLocSet: ext,
			NewXLocs:   []cmn.XLoc{{OSDs: []string{"D"}}},
		}
		start := time.Now()
		handle := m.Submit(req)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		installed, err := handle.Wait(ctx)
		elapsed := time.Since(start)

		Expect(err).NotTo(HaveOccurred())
		Expect(installed.Version).To(Equal(int64(6)))
		Expect(elapsed).To(BeNumerically(">=", 20*time.Millisecond))
		Expect(osd.probedOSDs()).To(BeEmpty())
	})

	// §8 scenario 4: unknown policy tag surfaces as a UserError and never
	// reaches install.
	It("rejects an unknown policy tag without installing", func() {
		cur := &cmn.XLocSet{
			Replicas: []cmn.XLoc{{OSDs: []string{"A"}}, {OSDs: []string{"B"}}, {OSDs: []string{"C"}}},
			Policy:   cmn.PolicyRONLY,
			Version:  1,
		}
		ext := cur.Clone()
		ext.Policy = cmn.UpdatePolicy("BOGUS")
		ext.Replicas = append(ext.Replicas, cmn.XLoc{OSDs: []string{"D"}})

		req := &Request{
			Kind:       cmn.KindAddReplicas,
			FileID:     "f4",
			Epoch:      1,
			CurXLocSet: cur,
			ExtXLocSet: ext,
			NewXLocs:   []cmn.XLoc{{OSDs: []string{"D"}}},
		}
		handle := m.Submit(req)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := handle.Wait(ctx)
		Expect(cmn.IsKind(err, cmn.KindUserError)).To(BeTrue())
		Expect(bridge.installCount()).To(Equal(0))
	})

	// §8 scenario 5: the metadata bridge's authorization guard denies the
	// install; the canonical version is unchanged and the next submit for
	// the same file proceeds normally.
	It("surfaces a PermissionDenied from the bridge guard without bumping the version", func() {
		cur := &cmn.XLocSet{
			Replicas: []cmn.XLoc{{OSDs: []string{"A"}}, {OSDs: []string{"B"}}, {OSDs: []string{"C"}}},
			Policy:   cmn.PolicyRONLY,
			Version:  1,
		}
		ext := cur.Clone()
		ext.Replicas = append(ext.Replicas, cmn.XLoc{OSDs: []string{"D"}})
		bridge.versions["f5"] = 1

		bridge.guard = func(string, *cmn.XLocSet) error {
			return cmn.NewPermissionDenied("not allowed")
		}

		req := &Request{
			Kind:       cmn.KindAddReplicas,
			FileID:     "f5",
			Epoch:      1,
			CurXLocSet: cur,
			ExtXLocSet: ext,
			NewXLocs:   []cmn.XLoc{{OSDs: []string{"D"}}},
		}
		handle := m.Submit(req)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := handle.Wait(ctx)
		Expect(cmn.IsKind(err, cmn.KindPermissionDenied)).To(BeTrue())
		Expect(bridge.installCount()).To(Equal(0))

		bridge.guard = nil
		handle2 := m.Submit(&Request{
			Kind:       cmn.KindAddReplicas,
			FileID:     "f5",
			Epoch:      1,
			CurXLocSet: cur,
			ExtXLocSet: ext,
			NewXLocs:   []cmn.XLoc{{OSDs: []string{"D"}}},
		})
		ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
		defer cancel2()
		installed, err := handle2.Wait(ctx2)
		Expect(err).NotTo(HaveOccurred())
		Expect(installed.Version).To(Equal(int64(2)))
	})

	// P5: serialization. K concurrent submits for distinct files each
	// complete with exactly one install call recorded, and no install is
	// ever missing or duplicated under concurrent producers.
	It("serializes concurrent submits through the single worker", func() {
		const k = 12
		var wg sync.WaitGroup
		wg.Add(k)
		for i := 0; i < k; i++ {
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				fileID := "concurrent-" + string(rune('a'+i))
				cur := &cmn.XLocSet{
					Replicas: []cmn.XLoc{{OSDs: []string{"A"}}, {OSDs: []string{"B"}}},
					Policy:   cmn.PolicyRONLY,
					Version:  0,
				}
				ext := cur.Clone()
				ext.Replicas = append(ext.Replicas, cmn.XLoc{OSDs: []string{"C"}})
				req := &Request{
					Kind:       cmn.KindAddReplicas,
					FileID:     fileID,
					Epoch:      1,
					CurXLocSet: cur,
					ExtXLocSet: ext,
					NewXLocs:   []cmn.XLoc{{OSDs: []string{"C"}}},
				}
				handle := m.Submit(req)
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				installed, err := handle.Wait(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(installed.Version).To(Equal(int64(1)))
			}(i)
		}
		wg.Wait()
		Expect(bridge.installCount()).To(Equal(k))
	})

	// P7: no phase failure ever leaves a partial install. Every current
	// replica is unreachable, so the invalidate fan-out collects zero
	// responses and the request fails before DECIDE or INSTALL run.
	It("never installs when the invalidate fan-out collects no responses", func() {
		restore := withShortLease(20 * time.Millisecond)
		defer restore()

		cur := &cmn.XLocSet{
			Replicas: []cmn.XLoc{{OSDs: []string{"A"}}, {OSDs: []string{"B"}}},
			Policy:   cmn.PolicyWaR1,
			Version:  0,
		}
		ext := cur.Clone()
		ext.Replicas = append(ext.Replicas, cmn.XLoc{OSDs: []string{"C"}})
		osd.invalidateErr["A"] = errFakeTransport
		osd.invalidateErr["B"] = errFakeTransport

		req := &Request{
			Kind:       cmn.KindAddReplicas,
			FileID:     "f7",
			Epoch:      1,
			CurXLocSet: cur,
			ExtXLocSet: ext,
			NewXLocs:   []cmn.XLoc{{OSDs: []string{"C"}}},
		}
		handle := m.Submit(req)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := handle.Wait(ctx)
		Expect(cmn.IsKind(err, cmn.KindInsufficientQuorum)).To(BeTrue())
		Expect(bridge.installCount()).To(Equal(0))
	})
})
