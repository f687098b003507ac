package account

import "github.com/ethereum/go-ethereum/metrics"

var accountsCreatedMeter = metrics.NewRegisteredMeter("appproxy/account/created", nil)
