// Package uuid generates random (version 4) identifiers. The server uses
// them to tag log lines with the connection they belong to.
package uuid

import (
	"crypto/rand"
	"encoding/hex"
)

// UUID is a 16-byte RFC 4122 identifier.
type UUID [16]byte

// NewV4 returns a random identifier with the version and variant bits set.
func NewV4() UUID {
	var id UUID
	if _, err := rand.Read(id[:]); err != nil {
		return id
	}
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}

// String formats the identifier in the canonical 8-4-4-4-12 form.
func (id UUID) String() string {
	var buf [36]byte
	hex.Encode(buf[:8], id[:4])
	buf[8] = '-'
	hex.Encode(buf[9:13], id[4:6])
	buf[13] = '-'
	hex.Encode(buf[14:18], id[6:8])
	buf[18] = '-'
	hex.Encode(buf[19:23], id[8:10])
	buf[23] = '-'
	hex.Encode(buf[24:], id[10:])
	return string(buf[:])
}

// Version reports the version nibble, always 4 for NewV4 identifiers.
func (id UUID) Version() byte {
	return id[6] >> 4
}
