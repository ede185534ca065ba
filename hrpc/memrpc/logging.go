package memrpc

import "github.com/streamingfast/logging"

var zlog, _ = logging.PackageLogger("hbase", "github.com/streamingfast/hbase/hrpc/memrpc")
