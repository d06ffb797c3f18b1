// Package capability builds short-lived signed tokens authorizing a
// file-id + access mode, per §4.D. Grounded on the teacher's own
// golang-jwt/jwt/v4 dependency and on the access-bitmask discipline of
// cmn.MakeAccess/AccessToStr (cmn/api.go) for the access-mode field.
package capability

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/leusonmario/xtreemfs/cmn"
)

const AccessModeReadWrite = "rw"

type claims struct {
	jwt.RegisteredClaims
	FileID           string `json:"file_id"`
	AccessMode       string `json:"access_mode"`
	ClientIdentity   string `json:"client_identity"`
	Epoch            int64  `json:"epoch"`
	ReplicateOnClose bool   `json:"replicate_on_close"`
	SnapshotsEnabled bool   `json:"snapshots_enabled"`
	SnapshotTs       int64  `json:"snapshot_ts"`
}

// Builder produces capabilities for a given file-id, using the process
// configuration for validity, secret, and advertised client identity.
type Builder struct {
	clientIdentity func() string
}

func NewBuilder() *Builder {
	return &Builder{clientIdentity: defaultClientIdentity}
}

func defaultClientIdentity() string {
	cfg := cmn.GCO.Get()
	if cfg.AdvertisedAddress != "" {
		return cfg.AdvertisedAddress
	}
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return host
}

// Build produces a capability per §4.D: access mode read-write, validity =
// configured capability timeout, expiry = now + validity, client identity =
// configured advertised address or local hostname, replicate-on-close
// false, snapshots disabled, signed with the configured shared secret.
func (b *Builder) Build(fileID string, epoch int64) (*cmn.Capability, error) {
	cfg := cmn.GCO.Get()
	now := time.Now()
	expiresAt := now.Add(cfg.CapabilityTimeout)

	newCap := &cmn.Capability{
		FileID:           fileID,
		AccessMode:       AccessModeReadWrite,
		ValiditySeconds:  int64(cfg.CapabilityTimeout.Seconds()),
		ExpiresAt:        expiresAt,
		ClientIdentity:   b.clientIdentity(),
		Epoch:            epoch,
		ReplicateOnClose: false,
		SnapshotsEnabled: false,
		SnapshotTs:       0,
	}

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fileID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		FileID:           newCap.FileID,
		AccessMode:       newCap.AccessMode,
		ClientIdentity:   newCap.ClientIdentity,
		Epoch:            newCap.Epoch,
		ReplicateOnClose: newCap.ReplicateOnClose,
		SnapshotsEnabled: newCap.SnapshotsEnabled,
		SnapshotTs:       newCap.SnapshotTs,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString([]byte(cfg.CapabilitySecret))
	if err != nil {
		return nil, cmn.NewInternalError(err)
	}
	newCap.Token = signed
	return newCap, nil
}

// Verify parses and validates a capability token against the configured
// shared secret, returning the decoded capability on success.
func Verify(token string) (*cmn.Capability, error) {
	cfg := cmn.GCO.Get()
	parsed := &claims{}
	_, err := jwt.ParseWithClaims(token, parsed, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.CapabilitySecret), nil
	})
	if err != nil {
		return nil, cmn.NewPermissionDenied("invalid capability: %v", err)
	}
	return &cmn.Capability{
		FileID:           parsed.FileID,
		AccessMode:       parsed.AccessMode,
		ClientIdentity:   parsed.ClientIdentity,
		Epoch:            parsed.Epoch,
		ReplicateOnClose: parsed.ReplicateOnClose,
		SnapshotsEnabled: parsed.SnapshotsEnabled,
		SnapshotTs:       parsed.SnapshotTs,
		Token:            token,
	}, nil
}
