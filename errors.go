package hbase

import "errors"

// ErrNoConnections is returned when a pool acquisition timeout elapses before
// any connection becomes available. This is an expected condition under load
// and is safe to retry.
var ErrNoConnections = errors.New("no connections available within timeout")

// ErrPoolClosed is returned when acquiring from a pool after Close.
var ErrPoolClosed = errors.New("connection pool is closed")
