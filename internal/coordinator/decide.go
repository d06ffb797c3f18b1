package coordinator

import (
	"github.com/leusonmario/xtreemfs/cmn"
	"github.com/leusonmario/xtreemfs/internal/policy"
)

// decideOutcome is the result of the DECIDE step for a coordinated policy:
// how many of the newly added replicas must be synchronously primed, and
// which ones, before install.
type decideOutcome struct {
	requiredUpdates int
	primeTargets    []cmn.XLoc
}

// decide implements §4.E's DECIDE formula for the coordinated policies
// (WaR1/WaRa/WqRq). RONLY never reaches here; callers branch on
// policy.IsCoordinated first.
//
// requiredRead's numRequiredAcks call is evaluated against curReplicaCount,
// the CURRENT (pre-reconfiguration) replica count: it asks how many of the
// replicas already serving reads a client must contact under the existing
// quorum policy, which is a property of the set being replaced, not the set
// being installed. minMajority and the final requiredUpdates subtraction use
// the extended N, since those measure the new set's quorum shortfall.
//
// The `requiredUpdates < newReplicas.length` assertion named as an open
// question in §9 is resolved per the REDESIGN FLAG: `>` is InsufficientQuorum,
// `==` is valid.
func decide(p *policy.Policy, fileID string, statuses []cmn.ReplicaStatus, curReplicaCount int, ext *cmn.XLocSet, newXLocs []cmn.XLoc) (decideOutcome, error) {
	n := ext.ReplicaCount()
	authState := policy.CalculateAuthoritativeState(statuses, fileID)
	minMajority := policy.MinMajority(authState, n)
	requiredRead := policy.RequiredRead(p, curReplicaCount)
	requiredUpdates := policy.RequiredUpdates(n, minMajority, requiredRead)
	if requiredUpdates < 0 {
		requiredUpdates = 0
	}

	if requiredUpdates > len(newXLocs) {
		return decideOutcome{}, cmn.NewInsufficientQuorum(
			"file %s: requiredUpdates=%d exceeds newReplicas=%d", fileID, requiredUpdates, len(newXLocs))
	}
	if requiredUpdates == 0 {
		return decideOutcome{}, nil
	}

	start := n - requiredUpdates
	if start < 0 {
		start = 0
	}
	return decideOutcome{requiredUpdates: requiredUpdates, primeTargets: ext.Replicas[start:]}, nil
}
