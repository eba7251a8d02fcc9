// Package config resolves the driver's command-line flags, applies
// optional .env overrides, and validates the resulting layout before a
// single byte of shared memory is touched.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Mode selects which scenario the driver runs.
type Mode string

// The two modes the driver understands.
const (
	ModeDot  Mode = "dot"
	ModeDemo Mode = "demo"
)

// BadConfigError reports a layout or flag value that would make the
// simulation impossible to run. The driver treats it as exit code 2.
type BadConfigError struct {
	Reason string
}

func (e *BadConfigError) Error() string {
	return fmt.Sprintf("bad config: %s", e.Reason)
}

// Config is the fully resolved, validated set of knobs the driver needs
// to build and run a simulation.
type Config struct {
	Mode          Mode
	N             int
	NoStep        bool
	MonitorAddr   string
	TraceDBPath   string
	CSVOutputPath string
}

// Default values used when a flag is left unset.
const (
	DefaultN             = 248
	DefaultCSVOutputPath = "cache_stats.csv"
)

// LoadDotEnv loads a .env file from the working directory, if one is
// present, into the process environment via godotenv.Load. Missing .env
// files are not an error. No flag or default is read back from the
// environment, so the loaded values override nothing.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// New validates and assembles a Config from already-parsed flag values.
// It never reads flags itself; that is cmd/mesisim's job, keeping this
// package testable without cobra in the loop.
func New(mode string, n int, noStep bool, monitorAddr, traceDBPath, csvPath string) (*Config, error) {
	m := Mode(mode)
	if m != ModeDot && m != ModeDemo {
		return nil, &BadConfigError{Reason: fmt.Sprintf("unknown mode %q, want %q or %q", mode, ModeDot, ModeDemo)}
	}

	if n <= 0 {
		return nil, &BadConfigError{Reason: fmt.Sprintf("N must be positive, got %d", n)}
	}

	if err := checkLayout(n); err != nil {
		return nil, err
	}

	if csvPath == "" {
		csvPath = DefaultCSVOutputPath
	}

	return &Config{
		Mode:          m,
		N:             n,
		NoStep:        noStep,
		MonitorAddr:   monitorAddr,
		TraceDBPath:   traceDBPath,
		CSVOutputPath: csvPath,
	}, nil
}

// checkLayout enforces 2*N*8 + 4*32 <= 4096, the constraint that the two
// N-element double vectors and the four 32-byte partial-sum lines must
// fit inside shared memory's fixed 4096-byte capacity.
func checkLayout(n int) error {
	const (
		shmCapacity  = 4096
		wordSize     = 8
		partialLines = 4
		lineSize     = 32
	)

	used := 2*n*wordSize + partialLines*lineSize
	if used > shmCapacity {
		return &BadConfigError{
			Reason: fmt.Sprintf(
				"N=%d needs %d bytes of shared memory, capacity is %d (max N is %d)",
				n, used, shmCapacity, MaxN()),
		}
	}

	return nil
}

// MaxN returns the largest N that satisfies the layout constraint.
func MaxN() int {
	const (
		shmCapacity  = 4096
		wordSize     = 8
		partialLines = 4
		lineSize     = 32
	)

	return (shmCapacity - partialLines*lineSize) / (2 * wordSize)
}

// EnvOr reads an environment variable, falling back to def when unset.
// A small helper so cmd/mesisim can layer flag > env > default without
// repeating os.LookupEnv boilerplate at every call site.
func EnvOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
