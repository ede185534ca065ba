package hbase

import (
	"encoding/binary"
	"encoding/hex"
)

// B is a shortcut for (must) hex.DecodeString
var B = func(s string) []byte {
	out, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}

	return out
}

// H is a shortcut for hex.EncodeToString
var H = hex.EncodeToString

var bigEndian = binary.BigEndian

// BytesIncrement returns the shortest byte string that sorts after the input
// when compared lexicographically. It increments the last byte that is
// smaller than 0xFF and drops everything after it. When the input consists
// only of 0xFF bytes there is no successor and nil is returned.
//
// This is what turns a prefix scan into a (start, exclusive stop) range.
func BytesIncrement(b []byte) []byte {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xff {
			out := make([]byte, i+1)
			copy(out, b[:i+1])
			out[i]++
			return out
		}
	}
	return nil
}

func Int64ToBytes(value int64) []byte {
	out := make([]byte, 8)
	bigEndian.PutUint64(out, uint64(value))

	return out
}

func BytesToInt64(value []byte) int64 {
	if len(value) != 8 {
		return 0
	}
	return int64(bigEndian.Uint64(value))
}
