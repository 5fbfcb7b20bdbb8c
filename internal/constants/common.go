package constants

// Common string constants used throughout the codebase
const (
	// Service name reported in structured logs
	ServiceName = "alkahest-oracle"

	// Log levels
	ErrorLevel = "error"

	// Environments
	ProdEnvironment  = "prod"
	DevEnvironment   = "dev"
	LocalEnvironment = "local"
)

// Engine defaults
const (
	DefaultReadConcurrency = 8
	DefaultRPCRateLimit    = 25
	DefaultRPCBurst        = 50
	DefaultMaxBlockRange   = 10_000
	DefaultDemandMaxDepth  = 16
	DefaultStatusAddr      = ":8080"
)
