package core

import "github.com/ethereum/go-ethereum/metrics"

var (
	messageProcessedMeter = metrics.NewRegisteredMeter("appproxy/messages/processed", nil)
	messageFailedMeter    = metrics.NewRegisteredMeter("appproxy/messages/failed", nil)
	messageInvalidMeter   = metrics.NewRegisteredMeter("appproxy/messages/invalid", nil)
	messageTimer          = metrics.NewRegisteredTimer("appproxy/messages/time", nil)
)
