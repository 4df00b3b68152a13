package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleAOI = []float64{-84.45688, 33.62848, -84.40212, 33.65607}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseRunOptions_Flags(t *testing.T) {
	opts, err := ParseRunOptions([]string{
		"--aoi", "-84.45688,33.62848,-84.40212,33.65607",
		"--type", "dem",
		"--output-dir", "out",
		"--variant", "seamless",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, sampleAOI, opts.AOI)
	assert.Equal(t, []string{"dem"}, opts.Types)
	assert.Equal(t, "out", opts.OutputDir)
	assert.Equal(t, []string{"seamless"}, opts.Variants)
	assert.False(t, opts.ListCatalog)
}

func TestParseRunOptions_SpaceSeparatedAOI(t *testing.T) {
	opts, err := ParseRunOptions([]string{
		"--aoi=-84.45688 33.62848 -84.40212 33.65607",
		"--type=both",
		"--output-dir=out",
	}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, sampleAOI, opts.AOI)
	assert.Equal(t, []string{"dem", "lidar"}, opts.Types)
}

func TestParseRunOptions_ConfigFile(t *testing.T) {
	path := writeFile(t, "run.json", `{
		"aoi": [-84.45688, 33.62848, -84.40212, 33.65607],
		"type": "lidar",
		"output_dir": "from-file"
	}`)

	t.Run("file supplies defaults", func(t *testing.T) {
		opts, err := ParseRunOptions([]string{"--config", path}, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, sampleAOI, opts.AOI)
		assert.Equal(t, []string{"lidar"}, opts.Types)
		assert.Equal(t, "from-file", opts.OutputDir)
	})

	t.Run("flags override file", func(t *testing.T) {
		opts, err := ParseRunOptions([]string{"--config", path, "--output-dir", "from-flag", "--type", "dem"}, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, "from-flag", opts.OutputDir)
		assert.Equal(t, []string{"dem"}, opts.Types)
		assert.Equal(t, sampleAOI, opts.AOI)
	})
}

func TestParseRunOptions_YAMLConfig(t *testing.T) {
	path := writeFile(t, "run.yaml", "aoi: [-84.45688, 33.62848, -84.40212, 33.65607]\ntype: dem,lidar\noutput_dir: data\nvariant: seamless\n")
	opts, err := ParseRunOptions([]string{"--config", path}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"dem", "lidar"}, opts.Types)
	assert.Equal(t, []string{"seamless"}, opts.Variants)
}

func TestParseRunOptions_Missing(t *testing.T) {
	_, err := ParseRunOptions([]string{"--type", "dem"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aoi")
	assert.Contains(t, err.Error(), "output_dir")
	assert.NotContains(t, err.Error(), "type")
}

func TestParseRunOptions_BadConfigFile(t *testing.T) {
	_, err := ParseRunOptions([]string{"--config", filepath.Join(t.TempDir(), "missing.json")}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.json")
}

func TestParseRunOptions_Help(t *testing.T) {
	_, err := ParseRunOptions([]string{"--help"}, io.Discard)
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestParseRunOptions_ListCatalog(t *testing.T) {
	opts, err := ParseRunOptions([]string{"--list-catalog"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, opts.ListCatalog)
}

func TestParseAOI(t *testing.T) {
	got, err := ParseAOI([]any{-84.45688, "33.62848", -84.40212, 33.65607})
	require.NoError(t, err)
	assert.Equal(t, sampleAOI, got)

	got, err = ParseAOI("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseAOI("a,b,c,d")
	assert.Error(t, err)

	_, err = ParseAOI(42)
	assert.Error(t, err)
}

func TestExpandTypes(t *testing.T) {
	assert.Equal(t, []string{"dem", "lidar"}, ExpandTypes("both"))
	assert.Equal(t, []string{"lidar", "dem"}, ExpandTypes("LIDAR, dem, lidar"))
	assert.Empty(t, ExpandTypes(""))
}
