package types

import (
	"errors"
	"time"
)

// Config holds backend selection and negotiation parameters for
// Backend.Attach and the broker.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// OfferTTL is applied to submitted offers that carry no explicit expiry.
	// Zero means such offers never expire.
	OfferTTL time.Duration `json:"offer_ttl" yaml:"offer_ttl"`

	// SweepInterval is the period between expiry sweeps in watch mode.
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval"`

	// SweepBatch caps the number of offers expired per sweep.
	SweepBatch int `json:"sweep_batch" yaml:"sweep_batch"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Defaults applied by the CLI when the config file omits a value.
const (
	DefaultOfferTTL      = 72 * time.Hour
	DefaultSweepInterval = time.Minute
	DefaultSweepBatch    = 100
)

// Config validation errors.
var (
	ErrBackendEmpty         = errors.New("backend must not be empty")
	ErrBackendUnknown       = errors.New("unknown backend")
	ErrOfferTTLInvalid      = errors.New("offer ttl must not be negative")
	ErrSweepIntervalInvalid = errors.New("sweep interval must not be negative")
	ErrSweepBatchInvalid    = errors.New("sweep batch must not be negative")
)

// Backend lifecycle errors.
var (
	ErrAlreadyAttached = errors.New("backend is already attached")
	ErrDetached        = errors.New("backend is detached")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns one of the
// sentinel errors above on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.OfferTTL < 0 {
		return ErrOfferTTLInvalid
	}
	if c.SweepInterval < 0 {
		return ErrSweepIntervalInvalid
	}
	if c.SweepBatch < 0 {
		return ErrSweepBatchInvalid
	}
	return nil
}
