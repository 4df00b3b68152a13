package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	"github.com/couchcryptid/usgs-data-tool/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aoi = domain.BoundingBox{MinLon: -84.45688, MinLat: 33.62848, MaxLon: -84.40212, MaxLat: 33.65607}

func writeRun(t *testing.T, out string, files map[string]domain.OutcomeStatus) {
	t.Helper()
	var outcomes []domain.DownloadOutcome
	for name, status := range files {
		o := domain.DownloadOutcome{
			Target: domain.FileTarget{
				DatasetType: "dem",
				Project:     "GA_Statewide_2018_B18_DRRA",
				Result:      domain.SearchResult{FileName: name, DownloadURL: "https://example.com/" + name},
			},
			Status: status,
		}
		o.Path = filepath.Join(out, "dem", o.Target.Project, name)
		if status == domain.StatusFailed {
			o.Err = &domain.DownloadError{Kind: domain.FailureNetwork, URL: o.Target.Result.DownloadURL, Err: os.ErrDeadlineExceeded}
		} else {
			require.NoError(t, os.MkdirAll(filepath.Dir(o.Path), 0o755))
			require.NoError(t, os.WriteFile(o.Path, []byte("raster"), 0o600))
		}
		outcomes = append(outcomes, o)
	}
	_, err := manifest.NewWriter().Write(out, "run-1", aoi, outcomes)
	require.NoError(t, err)
}

func TestRun_Passes(t *testing.T) {
	out := t.TempDir()
	writeRun(t, out, map[string]domain.OutcomeStatus{
		"a.tif": domain.StatusDownloaded,
		"b.tif": domain.StatusSkipped,
		"c.tif": domain.StatusFailed,
	})

	var buf bytes.Buffer
	assert.Equal(t, 0, run(out, &buf))
	assert.Contains(t, buf.String(), "1 downloaded, 1 skipped, 1 failed")
	assert.Contains(t, buf.String(), "All checks passed.")
}

func TestRun_MissingFile(t *testing.T) {
	out := t.TempDir()
	writeRun(t, out, map[string]domain.OutcomeStatus{"a.tif": domain.StatusDownloaded})
	require.NoError(t, os.Remove(filepath.Join(out, "dem", "GA_Statewide_2018_B18_DRRA", "a.tif")))

	var buf bytes.Buffer
	assert.Equal(t, 1, run(out, &buf))
	assert.Contains(t, buf.String(), "--- Downloaded files present ---")
}

func TestRun_LeftoverPartial(t *testing.T) {
	out := t.TempDir()
	writeRun(t, out, map[string]domain.OutcomeStatus{"a.tif": domain.StatusDownloaded})
	partial := filepath.Join(out, "dem", "GA_Statewide_2018_B18_DRRA", ".b.tif.123.part")
	require.NoError(t, os.WriteFile(partial, []byte("half"), 0o600))

	var buf bytes.Buffer
	assert.Equal(t, 1, run(out, &buf))
	assert.Contains(t, buf.String(), "leftover "+partial)
}

func TestRun_NoManifests(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 1, run(t.TempDir(), &buf))
	assert.Contains(t, buf.String(), "no manifests found")
}
