package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arkhai-io/alkahest-sub000/internal/constants"
	"github.com/arkhai-io/alkahest-sub000/internal/helpers"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// SecretSource resolves the signer key, from Secrets Manager or the environment
type SecretSource interface {
	GetSignerKey(ctx context.Context, secretArnEnvVar string, fallbackEnvVar string) (string, error)
}

// Config is the oracle runtime configuration
type Config struct {
	Stage           string
	RPCURL          string
	PrivateKey      string
	AddressBookPath string

	Mode          string
	ListenTimeout time.Duration
	StartBlock    uint64
	ResolveEscrow bool
	AcceptItems   []string

	ReadConcurrency int
	RPCRateLimit    float64
	RPCBurst        int
	MaxBlockRange   uint64
	DemandMaxDepth  int

	StatusAddr      string
	FailureQueueURL string
}

// LoadDotEnv loads a .env file when one is present
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to load .env")
	}
	return nil
}

// Load reads the configuration from the environment. The signer key is
// resolved through secrets so deployed stages can keep it in Secrets Manager.
func Load(ctx context.Context, secrets SecretSource) (*Config, error) {
	cfg := &Config{
		Stage:           getEnv("STAGE", helpers.StageLocal),
		RPCURL:          os.Getenv("RPC_URL"),
		AddressBookPath: getEnv("ADDRESS_BOOK_PATH", "addresses.json"),
		Mode:            getEnv("ARBITRATION_MODE", "unarbitrated-then-live"),
		StatusAddr:      getEnv("STATUS_ADDR", constants.DefaultStatusAddr),
		FailureQueueURL: os.Getenv("FAILURE_QUEUE_URL"),
		AcceptItems:     splitList(os.Getenv("ACCEPT_ITEMS")),
	}

	if !helpers.IsValidStage(cfg.Stage) {
		return nil, fmt.Errorf("invalid STAGE %q", cfg.Stage)
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC_URL environment variable is required")
	}

	var err error
	if cfg.ListenTimeout, err = getDuration("LISTEN_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.StartBlock, err = getUint("START_BLOCK", 0); err != nil {
		return nil, err
	}
	if cfg.ResolveEscrow, err = getBool("RESOLVE_ESCROW", false); err != nil {
		return nil, err
	}
	readConcurrency, err := getUint("READ_CONCURRENCY", constants.DefaultReadConcurrency)
	if err != nil {
		return nil, err
	}
	cfg.ReadConcurrency = int(readConcurrency)
	if cfg.RPCRateLimit, err = getFloat("RPC_RATE_LIMIT", constants.DefaultRPCRateLimit); err != nil {
		return nil, err
	}
	burst, err := getUint("RPC_BURST", constants.DefaultRPCBurst)
	if err != nil {
		return nil, err
	}
	cfg.RPCBurst = int(burst)
	if cfg.MaxBlockRange, err = getUint("MAX_BLOCK_RANGE", constants.DefaultMaxBlockRange); err != nil {
		return nil, err
	}
	depth, err := getUint("DEMAND_MAX_DEPTH", constants.DefaultDemandMaxDepth)
	if err != nil {
		return nil, err
	}
	cfg.DemandMaxDepth = int(depth)

	key, err := secrets.GetSignerKey(ctx, "ORACLE_PRIVATE_KEY_ARN", "ORACLE_PRIVATE_KEY")
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve oracle signer key")
	}
	if !helpers.IsPrivateKeyValid(key) {
		return nil, fmt.Errorf("oracle signer key is not a valid private key")
	}
	cfg.PrivateKey = key

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getUint(key string, defaultValue uint64) (uint64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return value, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return value, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s", key)
	}
	return value, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return value, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
