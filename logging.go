package hbase

import "github.com/streamingfast/logging"

var zlog, tracer = logging.PackageLogger("hbase", "github.com/streamingfast/hbase")
