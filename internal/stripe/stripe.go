// Package stripe implements the byte-exact striping-policy record: the one
// on-wire / on-disk format this subsystem owns (§4.A of the design). It is
// grounded on the same encode/decode discipline cmn.BucketProps.CopyFrom and
// .Equal use in the teacher (round-trip via a canonical representation), but
// here the wire form is a fixed-offset binary layout rather than JSON,
// because the design calls out exact byte offsets the encoder and decoder
// must agree on.
package stripe

import (
	"encoding/binary"
	"fmt"

	"github.com/leusonmario/xtreemfs/cmn"
)

const headerLen = 16

// Policy is the striping-policy record embedded in file metadata: a
// compact, versioned, byte-exact descriptor of how a file's data is split
// across OSDs.
type Policy struct {
	Pattern       string
	StripeSize    int32 // kilobytes
	Width         int32 // OSDs per stripe
	ParityWidth   int32
	ECWriteQuorum int32
}

// Validate enforces the invariants of §3: width >= 1, parityWidth < width,
// pattern non-empty ASCII.
func (p *Policy) Validate() error {
	if p.Width < 1 {
		return cmn.NewUserError("striping policy: width must be >= 1, got %d", p.Width)
	}
	if p.ParityWidth >= p.Width {
		return cmn.NewUserError("striping policy: parityWidth (%d) must be < width (%d)", p.ParityWidth, p.Width)
	}
	if p.StripeSize <= 0 {
		return cmn.NewUserError("striping policy: stripeSize must be positive, got %d", p.StripeSize)
	}
	if p.ECWriteQuorum < 0 {
		return cmn.NewUserError("striping policy: ecWriteQuorum must be >= 0, got %d", p.ECWriteQuorum)
	}
	if p.Pattern == "" {
		return cmn.NewUserError("striping policy: pattern must not be empty")
	}
	for i := 0; i < len(p.Pattern); i++ {
		if p.Pattern[i] > 127 {
			return cmn.NewUserError("striping policy: pattern must be ASCII")
		}
	}
	return nil
}

// String returns the canonical form used for equality: "pattern, stripeSize,
// width[, parity, ecQuorum]".
func (p *Policy) String() string {
	if p.ParityWidth == 0 && p.ECWriteQuorum == 0 {
		return fmt.Sprintf("%s, %d, %d", p.Pattern, p.StripeSize, p.Width)
	}
	return fmt.Sprintf("%s, %d, %d, %d, %d", p.Pattern, p.StripeSize, p.Width, p.ParityWidth, p.ECWriteQuorum)
}

// Equal compares policies by their canonical string form.
func (p *Policy) Equal(o *Policy) bool {
	return p.String() == o.String()
}

// Encode produces the fixed 16-byte-prefix, big-endian wire form:
// [0..4) stripeSize, [4..8) width, [8..12) parityWidth,
// [12..16) ecWriteQuorum, [16..) pattern bytes (length implied by total).
func Encode(p *Policy) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, headerLen+len(p.Pattern))
	binary.BigEndian.PutUint32(buf[0:4], uint32(p.StripeSize))
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.Width))
	binary.BigEndian.PutUint32(buf[8:12], uint32(p.ParityWidth))
	binary.BigEndian.PutUint32(buf[12:16], uint32(p.ECWriteQuorum))
	copy(buf[headerLen:], p.Pattern)
	return buf, nil
}

// Decode parses the wire form produced by Encode. A buffer shorter than the
// 16-byte header fails with a MalformedRecord-class UserError.
func Decode(buf []byte) (*Policy, error) {
	if len(buf) < headerLen {
		return nil, cmn.NewUserError("malformed striping policy record: need >= %d bytes, got %d", headerLen, len(buf))
	}
	p := &Policy{
		StripeSize:    int32(binary.BigEndian.Uint32(buf[0:4])),
		Width:         int32(binary.BigEndian.Uint32(buf[4:8])),
		ParityWidth:   int32(binary.BigEndian.Uint32(buf[8:12])),
		ECWriteQuorum: int32(binary.BigEndian.Uint32(buf[12:16])),
		Pattern:       string(buf[headerLen:]),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
