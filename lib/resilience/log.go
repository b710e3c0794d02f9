// Package resilience protects the pool from a misbehaving database.
package resilience

import (
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()
