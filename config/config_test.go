package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaritzaelena/ArquitecturaII-2-2025/config"
)

func TestNewAcceptsDefaultN(t *testing.T) {
	cfg, err := config.New("dot", config.DefaultN, false, "", "", "")
	require.NoError(t, err)
	require.Equal(t, config.ModeDot, cfg.Mode)
	require.Equal(t, 248, cfg.N)
	require.Equal(t, config.DefaultCSVOutputPath, cfg.CSVOutputPath)
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := config.New("bogus", config.DefaultN, false, "", "", "")
	require.Error(t, err)

	var badConfig *config.BadConfigError
	require.ErrorAs(t, err, &badConfig)
}

func TestNewRejectsNonPositiveN(t *testing.T) {
	_, err := config.New("dot", 0, false, "", "", "")
	require.Error(t, err)
}

func TestNewRejectsOversizedN(t *testing.T) {
	_, err := config.New("dot", 249, false, "", "", "")
	require.Error(t, err)
}

func TestMaxNMatchesLayoutConstraint(t *testing.T) {
	require.Equal(t, 248, config.MaxN())

	_, err := config.New("dot", config.MaxN(), false, "", "", "")
	require.NoError(t, err)
}

func TestNewFillsInCSVDefault(t *testing.T) {
	cfg, err := config.New("demo", 8, true, "", "", "")
	require.NoError(t, err)
	require.Equal(t, "cache_stats.csv", cfg.CSVOutputPath)
	require.True(t, cfg.NoStep)
}

func TestEnvOrFallsBackToDefault(t *testing.T) {
	require.Equal(t, "fallback", config.EnvOr("MESISIM_DOES_NOT_EXIST", "fallback"))
}
