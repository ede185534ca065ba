package hrpc

import (
	"context"
	"errors"
	"fmt"
)

// Client is the capability set this library requires from the remote
// endpoint. Implementations own their transport: Open/Close manage the
// underlying connection, every other method is one remote procedure call.
//
// Calls that fail at the transport layer (broken socket, protocol framing,
// unreachable host) must return an error wrapping *TransportError so the
// connection pool can tell a broken connection apart from an application
// error coming back from a healthy one.
//
// A Client is not safe for concurrent use; the connection wrapping it
// serializes every call, scanner goroutines included.
type Client interface {
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	GetTableNames(ctx context.Context) ([]string, error)
	GetColumnDescriptors(ctx context.Context, table string) (map[string]ColumnDescriptor, error)

	GetRowWithColumns(ctx context.Context, table string, row []byte, columns []string) ([]RowResult, error)
	GetRowWithColumnsTs(ctx context.Context, table string, row []byte, columns []string, timestamp int64) ([]RowResult, error)
	GetRowsWithColumns(ctx context.Context, table string, rows [][]byte, columns []string) ([]RowResult, error)
	GetRowsWithColumnsTs(ctx context.Context, table string, rows [][]byte, columns []string, timestamp int64) ([]RowResult, error)
	GetVer(ctx context.Context, table string, row []byte, column string, numVersions int32) ([]TCell, error)
	GetVerTs(ctx context.Context, table string, row []byte, column string, timestamp int64, numVersions int32) ([]TCell, error)

	MutateRows(ctx context.Context, table string, batches []BatchMutation) error
	MutateRowsTs(ctx context.Context, table string, batches []BatchMutation, timestamp int64) error
	AtomicIncrement(ctx context.Context, table string, row []byte, column string, amount int64) (int64, error)

	ScannerOpenWithScan(ctx context.Context, table string, scan Scan) (ScannerID, error)
	ScannerGetList(ctx context.Context, id ScannerID, nbRows int32) ([]RowResult, error)
	ScannerClose(ctx context.Context, id ScannerID) error
}

// TransportError marks a failure of the transport itself, as opposed to an
// error the remote store returned over a healthy transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a transport-layer failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
