package hbase

import (
	"context"
	"fmt"
	"strings"

	"github.com/streamingfast/hbase/hrpc"
	"go.uber.org/zap"
)

type connOptions struct {
	tablePrefix    string
	tablePrefixSep string
	compression    string
	clientFactory  func() (hrpc.Client, error)
}

type ConnectionOption func(*connOptions)

// WithTablePrefix prepends `prefix` plus the separator to every table name
// used through this connection.
func WithTablePrefix(prefix string) ConnectionOption {
	return func(o *connOptions) {
		o.tablePrefix = prefix
	}
}

func WithTablePrefixSeparator(sep string) ConnectionOption {
	return func(o *connOptions) {
		o.tablePrefixSep = sep
	}
}

// WithCompression enables transparent value compression, use 'zstd' or
// 'none'.
func WithCompression(mode string) ConnectionOption {
	return func(o *connOptions) {
		o.compression = mode
	}
}

// WithClientFactory overrides DSN resolution entirely, every client this
// connection ever builds (including rebuilds after a transport fault) comes
// from the given factory. This is how hosts inject their own transport.
func WithClientFactory(f func() (hrpc.Client, error)) ConnectionOption {
	return func(o *connOptions) {
		o.clientFactory = f
	}
}

// Connection owns exactly one client to the remote store. It is created
// unopened; Open is cheap to call and a no-op when the transport is already
// up. A Connection is exclusively owned by one caller at a time, which the
// pool enforces.
type Connection struct {
	dsn        string
	opts       connOptions
	compressor Compressor

	newClient func() (hrpc.Client, error)
	client    *taintingClient
}

// NewConnection builds an unopened connection for the DSN. The scheme is
// resolved against the hrpc registry unless a client factory option is given.
func NewConnection(dsn string, opts ...ConnectionOption) (*Connection, error) {
	o := connOptions{tablePrefixSep: "_"}
	for _, opt := range opts {
		opt(&o)
	}

	compressor, err := NewCompressor(o.compression)
	if err != nil {
		return nil, err
	}

	factory := o.clientFactory
	if factory == nil {
		factory = func() (hrpc.Client, error) {
			return hrpc.Dial(dsn)
		}
	}

	c := &Connection{
		dsn:        dsn,
		opts:       o,
		compressor: compressor,
		newClient:  factory,
	}
	if err := c.refresh(); err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}
	return c, nil
}

// Dial builds a connection and opens its transport immediately.
func Dial(ctx context.Context, dsn string, opts ...ConnectionOption) (*Connection, error) {
	c, err := NewConnection(dsn, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Open(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// refresh discards the current client and builds a fresh one from the
// factory, in place. The Connection identity is preserved, only the transport
// changes. On factory error the previous client is kept.
func (c *Connection) refresh() error {
	client, err := c.newClient()
	if err != nil {
		return err
	}
	c.client = newTaintingClient(client)
	return nil
}

// Open opens the underlying transport. Calling it on an open connection is a
// no-op, connections are opened lazily by the pool.
func (c *Connection) Open(ctx context.Context) error {
	if c.client.IsOpen() {
		return nil
	}

	zlog.Debug("opening transport", zap.String("dsn", c.dsn))
	return c.client.Open(ctx)
}

// Close closes the underlying transport. Closing a closed connection is a
// no-op.
func (c *Connection) Close() error {
	if !c.client.IsOpen() {
		return nil
	}

	zlog.Debug("closing transport", zap.String("dsn", c.dsn))
	return c.client.Close()
}

// Tainted reports whether a transport-class error was observed on this
// connection's client since it was last built.
func (c *Connection) Tainted() bool {
	return c.client.Tainted()
}

// Table returns a handle on the named table, bound to this connection. No
// round trip happens and the table is not checked for existence.
func (c *Connection) Table(name string) *Table {
	return &Table{
		name: c.tableName(name),
		conn: c,
	}
}

func (c *Connection) tableName(name string) string {
	if c.opts.tablePrefix == "" {
		return name
	}
	return c.opts.tablePrefix + c.opts.tablePrefixSep + name
}

// TableNames returns the table names available on the remote store. When a
// table prefix is configured only matching tables are returned, stripped of
// the prefix.
func (c *Connection) TableNames(ctx context.Context) ([]string, error) {
	names, err := c.client.GetTableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("get table names: %w", err)
	}

	if c.opts.tablePrefix == "" {
		return names, nil
	}

	prefix := c.opts.tablePrefix + c.opts.tablePrefixSep
	var out []string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name[len(prefix):])
		}
	}
	return out, nil
}
