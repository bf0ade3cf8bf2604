package app

import (
	"fmt"

	"github.com/ckguru/orchestrator/internal/artifacts"
	"github.com/ckguru/orchestrator/internal/broker/cancelbus"
	"github.com/ckguru/orchestrator/internal/platform/logger"
	"github.com/ckguru/orchestrator/internal/temporalx"

	temporalsdkclient "go.temporal.io/sdk/client"
)

// Clients holds every external-system client this binary needs,
// trimmed to this domain's dependency surface: object storage for
// model/dataset artifacts, the Temporal client for Broker Submit/
// Revoke/Describe, and the Redis-backed cancelbus secondary
// cancellation signal.
type Clients struct {
	ArtifactsBucket artifacts.BucketService
	Temporal        temporalsdkclient.Client
	CancelBus       cancelbus.Bus
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	var out Clients

	bucket, err := artifacts.NewBucketService(log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init artifacts bucket service: %w", err)
	}
	out.ArtifactsBucket = bucket

	tc, err := temporalx.NewClient(log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}
	out.Temporal = tc

	if cfg.RunWorker {
		cb, err := cancelbus.New(log)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init cancelbus: %w", err)
		}
		out.CancelBus = cb
	}

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
		c.Temporal = nil
	}
	if c.CancelBus != nil {
		_ = c.CancelBus.Close()
		c.CancelBus = nil
	}
	c.ArtifactsBucket = nil
}
