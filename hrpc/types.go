package hrpc

import (
	"encoding/hex"
)

// ScannerID identifies a stateful server-side scanner handle. The value is
// opaque to this library, only the endpoint that issued it can interpret it.
type ScannerID int64

// Key is a row key. Sort order is plain lexicographic byte comparison.
type Key []byte

func (k Key) String() string {
	return hex.EncodeToString(k)
}

// TCell is one versioned value of a row/column pair.
type TCell struct {
	Value     []byte
	Timestamp int64
}

// ColumnValue pairs a column identifier with one of its cells. Used for
// sorted-column scan results, where column ordering matters and a map would
// lose it.
type ColumnValue struct {
	Column string
	Cell   TCell
}

// RowResult is a single row as returned by gets and scanner fetches. Columns
// holds the latest visible cell per column identifier. SortedColumns is only
// populated when the scan requested sorted column output.
type RowResult struct {
	Row           []byte
	Columns       map[string]TCell
	SortedColumns []ColumnValue
}

// Mutation is a single change to one column of a row, either a put or a
// delete. A delete on a bare family name (no qualifier) removes every column
// of that family.
type Mutation struct {
	IsDelete   bool
	Column     string
	Value      []byte
	WriteToWAL bool
}

// BatchMutation groups the mutations that apply to a single row. The endpoint
// applies them in slice order.
type BatchMutation struct {
	Row       []byte
	Mutations []Mutation
}

// Scan describes a scanner to open. StartRow is inclusive, StopRow exclusive;
// for reversed scans StartRow must sort after StopRow. Caching is the number
// of rows the server sends back per fetch. Timestamp, when non-zero, is an
// exclusive upper bound on cell versions.
type Scan struct {
	StartRow     []byte
	StopRow      []byte
	Timestamp    int64
	Columns      []string
	Caching      int32
	FilterString string
	BatchSize    int32
	SortColumns  bool
	Reversed     bool
}

// ColumnDescriptor describes a column family. Name carries no trailing
// separator.
type ColumnDescriptor struct {
	Name              string
	MaxVersions       int32
	Compression       string
	InMemory          bool
	BloomFilterType   string
	BlockCacheEnabled bool
	TimeToLive        int32
}
