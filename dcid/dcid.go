// Package dcid mints compact content-derived identifiers used for resolution
// events, escrow accounts, and ledger transaction references. An ID is a
// 48-bit millisecond timestamp followed by 80 bits of xxh3 over the source
// bytes, base32 encoded; lexicographic order follows creation time.
package dcid

import (
	"encoding/base32"
	"encoding/binary"
	"time"

	"github.com/zeebo/xxh3"
)

var encoding = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

type DCID [16]byte

func New(data []byte, t time.Time) DCID {
	var id DCID

	millis := uint64(t.UnixMilli())
	binary.BigEndian.PutUint64(id[:8], millis<<16)

	digest := xxh3.Hash128(data).Bytes()
	copy(id[6:], digest[:10])

	return id
}

func (id DCID) String() string {
	return encoding.EncodeToString(id[:])
}

func (id DCID) Time() time.Time {
	var buf [8]byte
	copy(buf[2:], id[:6])
	return time.UnixMilli(int64(binary.BigEndian.Uint64(buf[:])))
}

func Parse(s string) (DCID, error) {
	var id DCID
	decoded, err := encoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	copy(id[:], decoded)
	return id, nil
}
