// Package policy implements the replica-update-policy algebra of §4.B: a
// small set of pure functions parameterized by a policy tag (data, not
// behavior), the way the teacher keeps xaction kinds in a lookup table
// (cmn.XactType, cmn/api.go) rather than a class hierarchy per kind.
package policy

import (
	"github.com/leusonmario/xtreemfs/cmn"
)

// Op is the operation a requiredAcks call is being asked about.
type Op int

const (
	OpWrite Op = iota
	OpRead
)

// Policy is the pure-function table for one update-policy tag.
type Policy struct {
	Tag             cmn.UpdatePolicy
	RequiresLease   bool
	BackupCanRead   bool
	NumRequiredAcks func(op Op, replicaCount int) int
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

var table = map[cmn.UpdatePolicy]*Policy{
	cmn.PolicyWaR1: {
		Tag:           cmn.PolicyWaR1,
		RequiresLease: true,
		BackupCanRead: false,
		NumRequiredAcks: func(_ Op, replicaCount int) int {
			return replicaCount - 1
		},
	},
	cmn.PolicyWaRa: {
		Tag:           cmn.PolicyWaRa,
		RequiresLease: true,
		BackupCanRead: true,
		NumRequiredAcks: func(_ Op, replicaCount int) int {
			return replicaCount - 1
		},
	},
	cmn.PolicyWqRq: {
		Tag:           cmn.PolicyWqRq,
		RequiresLease: true,
		BackupCanRead: false,
		NumRequiredAcks: func(_ Op, replicaCount int) int {
			return ceilDiv(replicaCount+1, 2) - 1
		},
	},
	cmn.PolicyRONLY: {
		Tag:           cmn.PolicyRONLY,
		RequiresLease: false,
		BackupCanRead: true,
		NumRequiredAcks: func(_ Op, _ int) int {
			return 0
		},
	},
}

// Lookup returns the Policy for tag, or a UserError if tag is not one of the
// closed set of supported policies (§8 scenario 4).
func Lookup(tag cmn.UpdatePolicy) (*Policy, error) {
	p, ok := table[tag]
	if !ok {
		return nil, cmn.NewUserError("unknown replica-update policy tag %q", tag)
	}
	return p, nil
}

// IsCoordinated reports whether tag requires the coordinated DECIDE branch
// (WaR1/WaRa/WqRq) as opposed to the RONLY lazy-fill branch.
func IsCoordinated(tag cmn.UpdatePolicy) bool {
	return tag != cmn.PolicyRONLY
}

// CalculateAuthoritativeState implements §4.B: for every object number
// appearing in any ReplicaStatus.ObjectVersions, pick the maximum
// objectVersion observed; the authoritative entry is (objectNumber,
// maxVersion, {replicas reporting maxVersion}). Total, deterministic,
// side-effect-free.
func CalculateAuthoritativeState(states []cmn.ReplicaStatus, fileID string) *cmn.AuthoritativeReplicaState {
	out := &cmn.AuthoritativeReplicaState{
		FileID:  fileID,
		Objects: make(map[uint64]*cmn.AuthoritativeObjectState),
	}
	for _, st := range states {
		for objNo, ver := range st.ObjectVersions {
			entry, ok := out.Objects[objNo]
			if !ok {
				out.Objects[objNo] = &cmn.AuthoritativeObjectState{
					ObjNo:      objNo,
					MaxVersion: ver,
					Holders:    map[string]struct{}{st.OSDUUID: {}},
				}
				continue
			}
			switch {
			case ver > entry.MaxVersion:
				entry.MaxVersion = ver
				entry.Holders = map[string]struct{}{st.OSDUUID: {}}
			case ver == entry.MaxVersion:
				entry.Holders[st.OSDUUID] = struct{}{}
			}
		}
	}
	return out
}

// MinMajority returns the smallest number of replicas holding the
// authoritative (max) version across all objects - "minMajority" in the
// DECIDE formula. An empty/sparse file (no objects at all) degrades to N,
// per §4.E step 2.
func MinMajority(state *cmn.AuthoritativeReplicaState, n int) int {
	if len(state.Objects) == 0 {
		return n
	}
	min := -1
	for _, obj := range state.Objects {
		h := len(obj.Holders)
		if min == -1 || h < min {
			min = h
		}
	}
	return min
}

// RequiredRead returns "requiredRead" in the DECIDE formula: 1 if the
// policy allows backups to read, else numRequiredAcks(read)+1 (folding in
// the local replica the read-quorum count excludes).
func RequiredRead(p *Policy, replicaCount int) int {
	if p.BackupCanRead {
		return 1
	}
	return p.NumRequiredAcks(OpRead, replicaCount) + 1
}

// RequiredUpdates computes "requiredUpdates" = N - minMajority - requiredRead + 1,
// the number of newly added replicas that must be synchronously primed
// before the new XLocSet can be installed while preserving R+W > N.
func RequiredUpdates(n, minMajority, requiredRead int) int {
	return n - minMajority - requiredRead + 1
}
