package resilience

import apperrors "github.com/go-i2p/dbpool/lib/errors"

// ErrCircuitOpen is returned when a connect attempt is rejected because the circuit is open.
// This is an alias to the central error definition in lib/errors.
var ErrCircuitOpen = apperrors.ErrCircuitOpen
