// Package engine carries the host-level concerns every workflow run needs
// regardless of which workflow document it's running: configuration read
// from the environment, phase-tagged logging, and the sentinel error kinds
// every other package wraps with context.
//
// Grounded on the teacher's pkg/config (LoadFromEnv/Validate, getEnv*
// helpers reading NEO4J_*/NORNICDB_* variables) — generalized here to the
// handful of host options the core actually needs: storage backend
// selection and the UntilUnchanged iteration cap.
package engine

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RuntimeConfig holds the options a host process sets outside the
// workflow document itself — things about *how* the engine runs, not
// *what* it runs.
type RuntimeConfig struct {
	// InMemory selects the in-memory Graph when true, the badger-backed
	// DiskGraph when false. ANNATTO_IN_MEMORY, default true.
	InMemory bool

	// GraphDir is the root directory for disk-backed storage, used only
	// when InMemory is false. ANNATTO_GRAPH_DIR, default "./data/graph".
	GraphDir string

	// MaxIterations caps map's UntilUnchanged repetition policy so a
	// non-monotone rule set fails loudly instead of looping forever, per
	// §9's "UntilUnchanged safety". ANNATTO_MAX_ITERATIONS, default 1000.
	MaxIterations int

	// ExpandEnv enables $VAR expansion in workflow document string
	// values, opt-in per §6. ANNATTO_EXPAND_ENV, default false.
	ExpandEnv bool

	// DebugDumpDir, if non-empty, receives a YAML dump of the update log
	// that produced a failing phase. ANNATTO_DEBUG_DUMP_DIR, unset by
	// default.
	DebugDumpDir string
}

// LoadFromEnv reads a RuntimeConfig from the process environment, filling
// unset variables with the documented defaults.
func LoadFromEnv() *RuntimeConfig {
	return &RuntimeConfig{
		InMemory:      getEnvBool("ANNATTO_IN_MEMORY", true),
		GraphDir:      getEnv("ANNATTO_GRAPH_DIR", "./data/graph"),
		MaxIterations: getEnvInt("ANNATTO_MAX_ITERATIONS", 1000),
		ExpandEnv:     getEnvBool("ANNATTO_EXPAND_ENV", false),
		DebugDumpDir:  getEnv("ANNATTO_DEBUG_DUMP_DIR", ""),
	}
}

// Validate rejects configuration combinations the engine cannot act on.
func (c *RuntimeConfig) Validate() error {
	if !c.InMemory && strings.TrimSpace(c.GraphDir) == "" {
		return fmt.Errorf("engine: ANNATTO_GRAPH_DIR must be set when ANNATTO_IN_MEMORY=false")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("engine: ANNATTO_MAX_ITERATIONS must be positive, got %d", c.MaxIterations)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
