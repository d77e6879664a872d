package functionRuntimeInterface

import "time"

// Settings configures a Runtime. The zero value of a duration disables the feature.
type Settings struct {
	// HTTPAddress is where the executor protocol is served, usually 0.0.0.0:3000.
	HTTPAddress string
	// GRPCAddress is optional. Empty disables the gRPC surface.
	GRPCAddress string
	// Secret must be presented by callers in x-internal-challenge. Empty disables the check.
	Secret string

	ExecutionTimeout time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxBodyBytes     int64
}

func DefaultSettings() Settings {
	return Settings{
		HTTPAddress:     "0.0.0.0:3000",
		ShutdownTimeout: 5 * time.Second,
		MaxBodyBytes:    20 << 20,
	}
}
