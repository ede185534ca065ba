package hbase

// Cell is one versioned value at a given row/column. The timestamp is always
// carried along; callers that do not care simply ignore it.
type Cell struct {
	Value     []byte
	Timestamp int64
}

// ColumnCell pairs a column identifier with its cell, preserving column
// ordering for sorted-column scans.
type ColumnCell struct {
	Column string
	Cell   Cell
}

// Row is one result row. Cells maps column identifiers (`family` or
// `family:qualifier`) to the latest visible cell. Ordered is populated only
// for scans that requested sorted columns, in ascending column order.
type Row struct {
	Key     []byte
	Cells   map[string]Cell
	Ordered []ColumnCell
}
