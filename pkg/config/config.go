package config

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence"
)

// Environment variable names for proof server configuration
const (
	EnvPORPort            = "POR_PORT"
	EnvPORLeafTag         = "POR_LEAF_TAG"
	EnvPORBranchTag       = "POR_BRANCH_TAG"
	EnvPORPersistenceType = "POR_PERSISTENCE_TYPE"
	EnvPORRedisAddress    = "POR_REDIS_ADDRESS"
	EnvPORRedisPassword   = "POR_REDIS_PASSWORD"
	EnvPORRedisDB         = "POR_REDIS_DB"
	EnvPORRedisKeyPrefix  = "POR_REDIS_KEY_PREFIX"
	EnvPORBadgerPath      = "POR_BADGER_PATH"
	EnvPORRateLimit       = "POR_RATE_LIMIT"
	EnvPORRateBurst       = "POR_RATE_BURST"
	EnvPORSeedDemo        = "POR_SEED_DEMO"
	EnvPORBalancesFile    = "POR_BALANCES_FILE"
	EnvPORHashWorkers     = "POR_HASH_WORKERS"
	EnvPORVerbose         = "POR_VERBOSE"
)

// Environment variable names for the verification client
const (
	EnvPORServerURL = "POR_SERVER_URL"
)

const (
	DefaultPort      = 8080
	DefaultLeafTag   = "ProofOfReserve_Leaf"
	DefaultBranchTag = "ProofOfReserve_Branch"

	// Tags used by the Bitcoin transaction tree reference vector
	BitcoinTransactionLeafTag   = "Bitcoin_Transaction"
	BitcoinTransactionBranchTag = "Bitcoin_Transaction"

	DefaultRedisAddress = "localhost:6379"
	DefaultBadgerPath   = "./data/balances"
)

// PersistenceConfig selects and configures the balance store
type PersistenceConfig struct {
	Type persistence.PersistenceType `json:"type"`

	RedisAddress   string `json:"redis_address,omitempty"`
	RedisPassword  string `json:"-"`
	RedisDB        int    `json:"redis_db,omitempty"`
	RedisKeyPrefix string `json:"redis_key_prefix,omitempty"`

	BadgerPath string `json:"badger_path,omitempty"`
}

// ProofServerConfig represents the complete configuration for a proof-of-reserve server
type ProofServerConfig struct {
	Port int `json:"port"`

	// Tag strings for leaf and branch hashing
	LeafTag   string `json:"leaf_tag"`
	BranchTag string `json:"branch_tag"`

	Persistence PersistenceConfig `json:"persistence"`

	// Requests per second allowed across the server; 0 disables limiting
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	// Hash levels in parallel when they contain at least ParallelMinLevel nodes
	HashWorkers      int `json:"hash_workers"`
	ParallelMinLevel int `json:"parallel_min_level"`

	// Load the reference balances at startup
	SeedDemo bool `json:"seed_demo"`

	// JSON array of balances imported into the store at startup
	BalancesFile string `json:"balances_file,omitempty"`

	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// NewDefaultProofServerConfig returns a configuration that serves the demo set from memory
func NewDefaultProofServerConfig() *ProofServerConfig {
	return &ProofServerConfig{
		Port:      DefaultPort,
		LeafTag:   DefaultLeafTag,
		BranchTag: DefaultBranchTag,
		Persistence: PersistenceConfig{
			Type: persistence.PersistenceTypeMemory,
		},
		HashWorkers:      1,
		ParallelMinLevel: 1024,
	}
}

// Validate validates the proof server configuration and reports every problem found
func (c *ProofServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}

	if c.LeafTag == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("leafTag"), "leafTag is required"))
	}
	if c.BranchTag == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("branchTag"), "branchTag is required"))
	}
	if c.LeafTag != "" && c.LeafTag == c.BranchTag {
		allErrors = append(allErrors, field.Invalid(field.NewPath("branchTag"), c.BranchTag, "branchTag must differ from leafTag"))
	}

	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "rateLimit cannot be negative"))
	}
	if c.RateBurst < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateBurst"), c.RateBurst, "rateBurst cannot be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst == 0 {
		allErrors = append(allErrors, field.Required(field.NewPath("rateBurst"), "rateBurst is required when rateLimit is set"))
	}

	if c.HashWorkers < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("hashWorkers"), c.HashWorkers, "hashWorkers cannot be negative"))
	}

	allErrors = append(allErrors, c.Persistence.validate(field.NewPath("persistence"))...)

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func (p *PersistenceConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList

	switch p.Type {
	case persistence.PersistenceTypeMemory:
	case persistence.PersistenceTypeRedis:
		if p.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(path.Child("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if p.RedisDB < 0 {
			allErrors = append(allErrors, field.Invalid(path.Child("redisDB"), p.RedisDB, "redisDB cannot be negative"))
		}
	case persistence.PersistenceTypeBadger:
		if p.BadgerPath == "" {
			allErrors = append(allErrors, field.Required(path.Child("badgerPath"), "badgerPath is required for badger persistence"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), p.Type, supportedPersistenceTypeNames()))
	}

	return allErrors
}

func supportedPersistenceTypeNames() []string {
	names := make([]string, 0, len(persistence.SupportedPersistenceTypes()))
	for _, t := range persistence.SupportedPersistenceTypes() {
		names = append(names, string(t))
	}
	return names
}

// GetSupportedPersistenceTypesString returns supported backends for CLI help
func GetSupportedPersistenceTypesString() string {
	return strings.Join(supportedPersistenceTypeNames(), ", ")
}

// String summarizes the configuration without secrets
func (c *ProofServerConfig) String() string {
	return fmt.Sprintf("port=%d leafTag=%q branchTag=%q persistence=%s", c.Port, c.LeafTag, c.BranchTag, c.Persistence.Type)
}
