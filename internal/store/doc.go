package store

import "github.com/user/netpulse/internal/types"

// Compile-time interface compliance checks.
var _ types.RequestStore = (*RequestStore)(nil)
var _ types.ResponseStore = (*ResponseStore)(nil)
var _ types.TelemetryStore = (*TelemetryStore)(nil)
