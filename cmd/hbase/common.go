package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"github.com/streamingfast/hbase"
	"go.uber.org/zap"
)

func getConnection(ctx context.Context) (*hbase.Connection, error) {
	dsn := viper.GetString("global-dsn")
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	zlog.Info("setting up connection", zap.String("dsn", dsn))
	conn, err := hbase.Dial(ctx, dsn,
		hbase.WithTablePrefix(viper.GetString("global-table-prefix")),
		hbase.WithCompression(viper.GetString("global-compression")),
	)
	if err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}
	return conn, nil
}
