package bridge

import "github.com/ethereum/go-ethereum/metrics"

var (
	lockedMeter = metrics.NewRegisteredMeter("appproxy/bridge/locked", nil)
	burnedMeter = metrics.NewRegisteredMeter("appproxy/bridge/burned", nil)

	publishedMeter = metrics.NewRegisteredMeter("appproxy/outbox/published", nil)
	duplicateMeter = metrics.NewRegisteredMeter("appproxy/outbox/duplicate", nil)
	ackedMeter     = metrics.NewRegisteredMeter("appproxy/outbox/acked", nil)
)
