package uuid_test

import (
	"testing"

	"github.com/stratumweb/stratum/test"
	"github.com/stratumweb/stratum/uuid"
)

func TestUUIDStringShape(t *testing.T) {
	id := uuid.NewV4()
	s := id.String()

	test.Equal(t, 36, len(s))
	for _, i := range []int{8, 13, 18, 23} {
		test.Equal(t, byte('-'), s[i])
	}
	// the version nibble is the first hex digit of the third group
	test.Equal(t, byte('4'), s[14])
}

func TestUUIDVersion(t *testing.T) {
	id := uuid.NewV4()
	test.Equal(t, byte(4), id.Version())
}

func TestUUIDVariantBits(t *testing.T) {
	id := uuid.NewV4()
	test.Equal(t, byte(0x80), id[8]&0xc0)
}

func TestUUIDUnique(t *testing.T) {
	a, b := uuid.NewV4(), uuid.NewV4()
	test.True(t, a != b, "two identifiers should not collide")
}

func BenchmarkUUIDToString(b *testing.B) {
	id := uuid.NewV4()
	for i := 0; i < b.N; i++ {
		_ = id.String()
	}
}
