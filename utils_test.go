package hbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesIncrement(t *testing.T) {
	tests := []struct {
		in       []byte
		expected []byte
	}{
		{in: B("00"), expected: B("01")},
		{in: B("1234"), expected: B("1235")},
		{in: B("12ff"), expected: B("13")},
		{in: B("12ffff"), expected: B("13")},
		{in: B("ff00ff"), expected: B("ff01")},
		{in: B("ff"), expected: nil},
		{in: B("ffffff"), expected: nil},
		{in: nil, expected: nil},
	}

	for _, test := range tests {
		t.Run(H(test.in), func(t *testing.T) {
			assert.Equal(t, test.expected, BytesIncrement(test.in))
		})
	}
}

func TestBytesIncrementDoesNotMutateInput(t *testing.T) {
	in := B("1234")
	BytesIncrement(in)
	assert.Equal(t, B("1234"), in)
}

func TestInt64Bytes(t *testing.T) {
	for _, value := range []int64{0, 1, -1, 42, -1000000, 1 << 40} {
		assert.Equal(t, value, BytesToInt64(Int64ToBytes(value)))
	}

	assert.Equal(t, B("0000000000000001"), Int64ToBytes(1))
	assert.Equal(t, int64(0), BytesToInt64([]byte("short")))
}
