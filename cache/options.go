package cache

import (
	"os"
	"strconv"

	"github.com/apex/log"
)

// Size limit sentinels for Options.SizeLimit and Config.SizeLimit.
// Positive values bound the entry count.
const (
	// DefaultLimit defers to the registry-wide default
	// (Options.SizeLimit, itself defaulting to GLOBAL_CACHE_SIZE_LIMIT
	// or Unbounded).
	DefaultLimit = 0
	// Unbounded disables eviction entirely.
	Unbounded = -1
	// Discard stores nothing: every write is evicted immediately, turning
	// the binding into a pass-through.
	Discard = -2
)

// Environment variables consulted for Options defaults.
const (
	EnvName      = "GLOBAL_CACHE_NAME"
	EnvDisable   = "GLOBAL_CACHE_DISABLE"
	EnvSizeLimit = "GLOBAL_CACHE_SIZE_LIMIT"
)

// DefaultName is the reserved namespace slot the registry stores itself
// under when GLOBAL_CACHE_NAME is not set.
const DefaultName = "__global_cache__"

// Options configures a Registry. The zero value is usable: defaults come
// from the environment where a variable is set, otherwise from the
// constants above.
type Options struct {
	// Name is the reserved slot in the host namespace under which the
	// registry keeps itself alive across re-executions.
	Name string

	// SaveDir roots the persistent store directory ({SaveDir}/.globalcache).
	// Empty means the current working directory.
	SaveDir string

	// SizeLimit is the default entry limit for bindings created with
	// Config.SizeLimit == DefaultLimit. Zero defers to GLOBAL_CACHE_SIZE_LIMIT,
	// falling back to Unbounded.
	SizeLimit int

	// Reset discards any binding table adopted from the namespace,
	// starting from an empty registry. Disk state is untouched.
	Reset bool

	// Disable forces every lookup to miss and every store to a no-op.
	// GLOBAL_CACHE_DISABLE=1 has the same effect. Togglable later via
	// SetDisabled.
	Disable bool

	// Metrics receives hit/miss/evict/size signals. Nil means NoopMetrics;
	// plug metrics/prom.Adapter to export Prometheus metrics.
	Metrics Metrics

	// Logger receives debug output from persistence and reset paths.
	// Nil discards.
	Logger log.Interface
}

// Config fixes a binding's behavior at creation time. Changing it requires
// binding the same name again, which either returns the existing binding
// (compatible config) or fails with *NameCollisionError.
type Config struct {
	// Reset force-clears existing in-memory entries before first use.
	// The disk mirror is untouched; use Binding.Reset(true) to drop it.
	Reset bool

	// SizeLimit bounds the entry count (DefaultLimit, Unbounded, Discard,
	// or a positive bound).
	SizeLimit int

	// Save enables the write-through disk mirror for this binding.
	Save bool
}

func envName() string {
	if v := os.Getenv(EnvName); v != "" {
		return v
	}
	return DefaultName
}

func envDisabled() bool {
	return os.Getenv(EnvDisable) == "1"
}

func envSizeLimit() int {
	v := os.Getenv(EnvSizeLimit)
	if v == "" {
		return Unbounded
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return Unbounded
	}
	return n
}
