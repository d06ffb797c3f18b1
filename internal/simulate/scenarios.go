package simulate

import (
	"github.com/leusonmario/xtreemfs/cmn"
	"github.com/leusonmario/xtreemfs/internal/coordinator"
)

// scenario is one of spec.md §8's end-to-end walkthroughs, expressed as a
// coordinator.Request plus the canned transport state it needs and the
// outcome an operator should expect.
type scenario struct {
	name        string
	description string
	cur, ext    *cmn.XLocSet
	newXLocs    []cmn.XLoc
	silent      []string
	statuses    map[string]cmn.ReplicaStatus
	guardDenies bool
	wantErrKind cmn.ErrorKind // empty means "expect success"
}

func xloc(osd string) cmn.XLoc { return cmn.XLoc{OSDs: []string{osd}} }

func scenarios() []scenario {
	return []scenario{
		{
			name:        "ronly-add-full-response",
			description: "RONLY add, 3 -> 5 replicas, all current replicas respond: lazy-fill, no priming.",
			cur:         &cmn.XLocSet{Replicas: []cmn.XLoc{xloc("A"), xloc("B"), xloc("C")}, Policy: cmn.PolicyRONLY, Version: 0},
			ext:         &cmn.XLocSet{Replicas: []cmn.XLoc{xloc("A"), xloc("B"), xloc("C"), xloc("D"), xloc("E")}, Policy: cmn.PolicyRONLY, Version: 0},
			newXLocs:    []cmn.XLoc{xloc("D"), xloc("E")},
		},
		{
			name:        "wqrq-add-coordinated-prime",
			description: "WqRq add, 3 -> 5, all current replicas agree on object 0@4: one new replica must be primed before install.",
			cur:         &cmn.XLocSet{Replicas: []cmn.XLoc{xloc("A"), xloc("B"), xloc("C")}, Policy: cmn.PolicyWqRq, Version: 0},
			ext:         &cmn.XLocSet{Replicas: []cmn.XLoc{xloc("A"), xloc("B"), xloc("C"), xloc("D"), xloc("E")}, Policy: cmn.PolicyWqRq, Version: 0},
			newXLocs:    []cmn.XLoc{xloc("D"), xloc("E")},
			statuses: map[string]cmn.ReplicaStatus{
				"A": {OSDUUID: "A", ObjectVersions: map[uint64]uint64{0: 4}},
				"B": {OSDUUID: "B", ObjectVersions: map[uint64]uint64{0: 4}},
				"C": {OSDUUID: "C", ObjectVersions: map[uint64]uint64{0: 4}},
			},
		},
		{
			name:        "war1-add-silent-replica-lease-wait",
			description: "WaR1 add, 3 -> 4, one current replica silent: coordinator lease-waits before proceeding.",
			cur:         &cmn.XLocSet{Replicas: []cmn.XLoc{xloc("A"), xloc("B"), xloc("C")}, Policy: cmn.PolicyWaR1, Version: 0},
			ext:         &cmn.XLocSet{Replicas: []cmn.XLoc{xloc("A"), xloc("B"), xloc("C"), xloc("D")}, Policy: cmn.PolicyWaR1, Version: 0},
			newXLocs:    []cmn.XLoc{xloc("D")},
			silent:      []string{"B"},
			statuses: map[string]cmn.ReplicaStatus{
				"A": {OSDUUID: "A", ObjectVersions: map[uint64]uint64{0: 1}},
				"C": {OSDUUID: "C", ObjectVersions: map[uint64]uint64{0: 1}},
			},
		},
		{
			name:        "unknown-policy-rejected",
			description: "Extended XLocSet names an unsupported policy tag: rejected before install.",
			cur:         &cmn.XLocSet{Replicas: []cmn.XLoc{xloc("A"), xloc("B"), xloc("C")}, Policy: cmn.PolicyRONLY, Version: 0},
			ext:         &cmn.XLocSet{Replicas: []cmn.XLoc{xloc("A"), xloc("B"), xloc("C"), xloc("D")}, Policy: cmn.UpdatePolicy("BOGUS"), Version: 0},
			newXLocs:    []cmn.XLoc{xloc("D")},
			wantErrKind: cmn.KindUserError,
		},
		{
			name:        "authorization-denied",
			description: "The metadata bridge's authorization guard denies the install.",
			cur:         &cmn.XLocSet{Replicas: []cmn.XLoc{xloc("A"), xloc("B"), xloc("C")}, Policy: cmn.PolicyRONLY, Version: 0},
			ext:         &cmn.XLocSet{Replicas: []cmn.XLoc{xloc("A"), xloc("B"), xloc("C"), xloc("D")}, Policy: cmn.PolicyRONLY, Version: 0},
			newXLocs:    []cmn.XLoc{xloc("D")},
			guardDenies: true,
			wantErrKind: cmn.KindPermissionDenied,
		},
		{
			name:        "no-quorum-all-silent",
			description: "Every current replica is unreachable: the request fails with insufficient quorum.",
			cur:         &cmn.XLocSet{Replicas: []cmn.XLoc{xloc("A"), xloc("B")}, Policy: cmn.PolicyWaR1, Version: 0},
			ext:         &cmn.XLocSet{Replicas: []cmn.XLoc{xloc("A"), xloc("B"), xloc("C")}, Policy: cmn.PolicyWaR1, Version: 0},
			newXLocs:    []cmn.XLoc{xloc("C")},
			silent:      []string{"A", "B"},
			wantErrKind: cmn.KindInsufficientQuorum,
		},
	}
}

func requestFor(s scenario) *coordinator.Request {
	return &coordinator.Request{
		Kind:       cmn.KindAddReplicas,
		FileID:     s.name,
		Epoch:      1,
		CurXLocSet: s.cur,
		ExtXLocSet: s.ext,
		NewXLocs:   s.newXLocs,
	}
}
