package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "prefer-non-empty", cfg.Conflict.Strategy)
	assert.Equal(t, 2, cfg.Dedupe.FlagThreshold)
	assert.Equal(t, "Id", cfg.Table.Headers.ID)
	assert.Equal(t, "Institution", cfg.Table.Headers.Institution)
	assert.Equal(t, 8080, cfg.Server.Port)

	format, err := cfg.Table.Format()
	require.NoError(t, err)
	assert.Equal(t, '\t', format.Delimiter)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("LINEAGE_CONFLICT_STRATEGY", "prefer-longest")
	t.Setenv("LINEAGE_TABLE_DELIMITER", ",")
	t.Setenv("YEAR_COLUMN_HEADER", "Graduated")
	t.Setenv("NEO4J_URI", "bolt://graph:7687")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prefer-longest", cfg.Conflict.Strategy)
	assert.Equal(t, "Graduated", cfg.Table.Headers.Year)
	assert.Equal(t, "bolt://graph:7687", cfg.Export.Neo4j.URI)

	format, err := cfg.Table.Format()
	require.NoError(t, err)
	assert.Equal(t, ',', format.Delimiter)
}

func TestTableFormatRejectsLongDelimiter(t *testing.T) {
	_, err := TableConfig{Delimiter: "::"}.Format()
	assert.Error(t, err)
}
