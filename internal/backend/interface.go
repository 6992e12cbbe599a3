// Package backend builds the data source and event client selected by
// configuration.
package backend

import (
	"context"
	"time"

	"financeiro/internal/amqp"
	"financeiro/internal/source"
)

type CleanupFunc func() error

// Result contains the backend, the optional event client and a cleanup
// function releasing both.
type Result struct {
	Backend source.Backend
	// Events is nil when AMQP is not configured or unreachable.
	Events  *amqp.Client
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config selects one data source. Only the fields of the chosen Type
// are read.
type Config struct {
	Type BackendType

	SQLiteDBPath string

	APIBaseURL string
	APIToken   string
	APITimeout time.Duration

	// seed files for the memory backend
	DataDirectory string

	// Events; an empty URL disables them
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	RemoteBackend BackendType = "remote"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	return bt == SQLiteBackend || bt == RemoteBackend || bt == MemoryBackend
}
