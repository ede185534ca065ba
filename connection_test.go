package hbase

import (
	"context"
	"errors"
	"testing"

	"github.com/streamingfast/hbase/hrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionInvalidCompression(t *testing.T) {
	_, err := NewConnection("fake://", WithCompression("lz4"))
	require.Error(t, err)
}

func TestNewConnectionFactoryError(t *testing.T) {
	boom := errors.New("no transport")
	_, err := NewConnection("fake://", WithClientFactory(func() (hrpc.Client, error) {
		return nil, boom
	}))
	require.ErrorIs(t, err, boom)
}

func TestConnectionOpenCloseIdempotent(t *testing.T) {
	client := &fakeClient{}
	conn, _, err := newFakeConnection(client)
	require.NoError(t, err)

	ctx := context.Background()
	assert.False(t, client.IsOpen())

	require.NoError(t, conn.Open(ctx))
	require.NoError(t, conn.Open(ctx))
	assert.True(t, client.IsOpen())

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.False(t, client.IsOpen())
}

func TestConnectionTaintOnTransportError(t *testing.T) {
	client := &fakeClient{callErr: &hrpc.TransportError{Op: "getTableNames", Err: errors.New("broken pipe")}}
	conn, _, err := newFakeConnection(client)
	require.NoError(t, err)
	require.NoError(t, conn.Open(context.Background()))

	assert.False(t, conn.Tainted())

	_, err = conn.TableNames(context.Background())
	require.Error(t, err)
	assert.True(t, conn.Tainted())
}

func TestConnectionNoTaintOnApplicationError(t *testing.T) {
	client := &fakeClient{callErr: errors.New("table does not exist")}
	conn, _, err := newFakeConnection(client)
	require.NoError(t, err)
	require.NoError(t, conn.Open(context.Background()))

	_, err = conn.TableNames(context.Background())
	require.Error(t, err)
	assert.False(t, conn.Tainted())
}

func TestConnectionRefreshClearsTaint(t *testing.T) {
	faulty := &fakeClient{callErr: &hrpc.TransportError{Op: "getTableNames", Err: errors.New("broken pipe")}}
	fresh := &fakeClient{}
	conn, builds, err := newFakeConnection(faulty, fresh)
	require.NoError(t, err)
	require.NoError(t, conn.Open(context.Background()))

	_, err = conn.TableNames(context.Background())
	require.Error(t, err)
	require.True(t, conn.Tainted())

	require.NoError(t, conn.refresh())
	assert.False(t, conn.Tainted())
	assert.Equal(t, 2, *builds)
}

func TestDialOpensTransport(t *testing.T) {
	client := &fakeClient{}
	conn, err := Dial(context.Background(), "fake://", WithClientFactory(func() (hrpc.Client, error) {
		return client, nil
	}))
	require.NoError(t, err)
	defer conn.Close()

	assert.True(t, client.IsOpen())
}
