package hrpc

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// FactoryFunc builds an unopened client from a DSN. Opening the transport is
// the caller's job, connections are opened lazily.
type FactoryFunc func(dsn string) (Client, error)

type Registration struct {
	Name        string // unique scheme name
	Title       string // human-readable name
	FactoryFunc FactoryFunc
}

var registry = make(map[string]*Registration)

func Register(reg *Registration) {
	if reg.Name == "" {
		zlog.Fatal("name cannot be blank")
	} else if _, ok := registry[reg.Name]; ok {
		zlog.Fatal("already registered", zap.String("name", reg.Name))
	}
	registry[reg.Name] = reg
}

// Dial resolves the DSN scheme against the registry and builds an unopened
// client for it.
func Dial(dsn string) (Client, error) {
	chunks := strings.Split(dsn, ":")
	reg, found := registry[chunks[0]]
	if !found {
		return nil, fmt.Errorf("no client registered for scheme %q", chunks[0])
	}
	return reg.FactoryFunc(dsn)
}

// ByName returns a registered client driver
func ByName(name string) *Registration {
	r, ok := registry[name]
	if !ok {
		return nil
	}
	return r
}
