package cmn

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Replication-flags bitmap carried by every XLoc entry. Bits 0-1 select the
// replica kind, the remaining bits select the replication strategy used to
// decide the order in which a backup pulls missing objects.
const (
	ReplFlagFullReplica    uint32 = 1 << 0
	ReplFlagPartialReplica uint32 = 1 << 1

	ReplFlagStrategyRandom      uint32 = 1 << 2
	ReplFlagStrategyRarestFirst uint32 = 1 << 3
	ReplFlagStrategySequential  uint32 = 1 << 4

	replStrategyMask = ReplFlagStrategyRandom | ReplFlagStrategyRarestFirst | ReplFlagStrategySequential
)

// XLoc is one replica descriptor: an ordered list of OSD UUIDs (the first is
// the head OSD for that stripe) plus a replication-flags bitmap.
type XLoc struct {
	OSDs  []string `json:"osd_uuids"`
	Flags uint32   `json:"flags"`
}

func (x *XLoc) Head() string {
	if len(x.OSDs) == 0 {
		return ""
	}
	return x.OSDs[0]
}

func (x *XLoc) IsFullReplica() bool    { return x.Flags&ReplFlagFullReplica != 0 }
func (x *XLoc) IsPartialReplica() bool { return x.Flags&ReplFlagPartialReplica != 0 }
func (x *XLoc) Strategy() uint32       { return x.Flags & replStrategyMask }

// UpdatePolicy is the tag of the closed set of replica-update policies
// defined in §4.B. It is data, not behavior - see internal/policy for the
// table of pure functions keyed by this tag.
type UpdatePolicy string

const (
	PolicyWaR1  UpdatePolicy = "WaR1"
	PolicyWaRa  UpdatePolicy = "WaRa"
	PolicyWqRq  UpdatePolicy = "WqRq"
	PolicyRONLY UpdatePolicy = "RONLY"
)

// XLocSet is the ordered list of replicas for a file, plus the update policy
// governing it, a monotonically increasing version, and a read-only flag.
type XLocSet struct {
	Replicas  []XLoc       `json:"replicas"`
	Policy    UpdatePolicy `json:"policy"`
	Version   int64        `json:"version"`
	ReadOnly  bool         `json:"read_only"`
}

func (s *XLocSet) ReplicaCount() int { return len(s.Replicas) }

// Clone returns a deep copy so that an XLocSet can be treated as an
// immutable value everywhere it is passed through the protocol.
func (s *XLocSet) Clone() *XLocSet {
	out := &XLocSet{Policy: s.Policy, Version: s.Version, ReadOnly: s.ReadOnly}
	out.Replicas = make([]XLoc, len(s.Replicas))
	for i, r := range s.Replicas {
		out.Replicas[i] = XLoc{Flags: r.Flags, OSDs: append([]string(nil), r.OSDs...)}
	}
	return out
}

// Equal reports byte-equality in the sense required by §3's invariant: two
// XLocSets for the same file with equal version must be byte-equal.
func (s *XLocSet) Equal(o *XLocSet) bool {
	a, err := jsoniter.Marshal(s)
	AssertNoErr(err)
	b, err := jsoniter.Marshal(o)
	AssertNoErr(err)
	return string(a) == string(b)
}

// RequestKind is the tagged-union discriminant for a queued request method,
// per the design note in §9: "the kind union with per-kind arguments maps
// directly to a tagged sum".
type RequestKind int

const (
	KindAddReplicas RequestKind = iota
	KindRemoveReplicas
	KindReplaceReplica
)

func (k RequestKind) String() string {
	switch k {
	case KindAddReplicas:
		return "AddReplicas"
	case KindRemoveReplicas:
		return "RemoveReplicas"
	case KindReplaceReplica:
		return "ReplaceReplica"
	default:
		return "Unknown"
	}
}

// ReplicaStatus is the per-replica report collected during the
// invalidate fan-out: the object-version map a single OSD holds for a file.
type ReplicaStatus struct {
	OSDUUID        string
	IsPrimary      bool
	ObjectVersions map[uint64]uint64 // objNo -> objVersion
}

// AuthoritativeObjectState is one entry of the authoritative replica state:
// the winning (objectVersion, set-of-OSDs-holding-it) for one object number.
type AuthoritativeObjectState struct {
	ObjNo      uint64
	MaxVersion uint64
	Holders    map[string]struct{}
}

// AuthoritativeReplicaState is the full per-object authoritative state
// computed by policy.CalculateAuthoritativeState.
type AuthoritativeReplicaState struct {
	FileID  string
	Objects map[uint64]*AuthoritativeObjectState
}

// Capability is opaque to the coordinator beyond being issuable and
// attachable to OSD RPCs; only the fields needed to build and validate it
// are modeled here.
type Capability struct {
	FileID           string    `json:"file_id"`
	AccessMode       string    `json:"access_mode"`
	ValiditySeconds  int64     `json:"validity_seconds"`
	ExpiresAt        time.Time `json:"expires_at"`
	ClientIdentity   string    `json:"client_identity"`
	Epoch            int64     `json:"epoch"`
	ReplicateOnClose bool      `json:"replicate_on_close"`
	SnapshotsEnabled bool      `json:"snapshots_enabled"`
	SnapshotTs       int64     `json:"snapshot_ts"`
	Token            string    `json:"-"` // signed token string, not serialized with the claims
}
