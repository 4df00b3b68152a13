// Command verify checks an output directory produced by usgsfetch against
// the manifests written next to the files. It confirms every downloaded or
// skipped file is present and non-empty, that no partial downloads were left
// behind, and that the manifests themselves are well formed.
//
// Usage:
//
//	go run ./cmd/verify --output-dir ./out
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	"github.com/couchcryptid/usgs-data-tool/internal/manifest"
	geojson "github.com/paulmach/go.geojson"
	"github.com/spf13/pflag"
)

// phase tracks pass/fail for a verification phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type loaded struct {
	datasetType string
	fc          *geojson.FeatureCollection
}

func main() {
	fset := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	outputDir := fset.String("output-dir", "", "directory previously passed to usgsfetch --output-dir")
	if err := fset.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(1)
	}
	if *outputDir == "" {
		fset.Usage()
		os.Exit(1)
	}
	os.Exit(run(*outputDir, os.Stdout))
}

func run(outputDir string, out io.Writer) int {
	fmt.Fprintln(out, "=== USGS Output Verification ===")
	fmt.Fprintln(out)

	manifests, load := loadManifests(outputDir)
	phases := []*phase{
		load,
		verifyFeatures(manifests),
		verifyFiles(outputDir, manifests),
		verifyNoPartials(outputDir),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-36s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	counts := countStatuses(manifests)
	fmt.Fprintf(out, "Files: %d downloaded, %d skipped, %d failed, %d cancelled across %d manifest(s)\n",
		counts[domain.StatusDownloaded], counts[domain.StatusSkipped], counts[domain.StatusFailed],
		counts[domain.StatusCancelled], len(manifests))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll checks passed.")
		return 0
	}
	fmt.Fprintln(out, "\nVerification FAILED.")
	return 1
}

// loadManifests reads <outputDir>/<type>/manifest.geojson for every type
// directory, in name order.
func loadManifests(outputDir string) ([]loaded, *phase) {
	p := &phase{name: "Manifests readable"}
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		p.errorf("read output dir: %v", err)
		return nil, p
	}

	var out []loaded
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(outputDir, e.Name(), manifest.FileName)
		if _, err := os.Stat(path); err != nil {
			p.errorf("%s: no %s", e.Name(), manifest.FileName)
			continue
		}
		fc, err := manifest.Read(path)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		out = append(out, loaded{datasetType: e.Name(), fc: fc})
	}
	if len(out) == 0 && p.passed() {
		p.errorf("no manifests found under %s", outputDir)
	}
	return out, p
}

func verifyFeatures(manifests []loaded) *phase {
	p := &phase{name: "Manifest features well formed"}
	for _, m := range manifests {
		if len(m.fc.Features) == 0 || m.fc.Features[0].PropertyMustString(manifest.PropRole) != manifest.RoleAOI {
			p.errorf("%s: first feature is not the AOI", m.datasetType)
			continue
		}
		seen := make(map[string]bool)
		for i, f := range m.fc.Features[1:] {
			project := f.PropertyMustString(manifest.PropProject)
			file := f.PropertyMustString(manifest.PropFile)
			status := f.PropertyMustString(manifest.PropStatus)
			if project == "" || file == "" || status == "" {
				p.errorf("%s feature %d: missing project, file, or status", m.datasetType, i+1)
				continue
			}
			if dt := f.PropertyMustString(manifest.PropDatasetType); dt != m.datasetType {
				p.errorf("%s/%s/%s: dataset_type %q", m.datasetType, project, file, dt)
			}
			key := project + "/" + file
			if seen[key] {
				p.errorf("%s/%s: listed more than once", m.datasetType, key)
			}
			seen[key] = true
			if domain.OutcomeStatus(status) == domain.StatusFailed && f.PropertyMustString(manifest.PropError) == "" {
				p.errorf("%s/%s: failed without an error", m.datasetType, key)
			}
		}
	}
	return p
}

func verifyFiles(outputDir string, manifests []loaded) *phase {
	p := &phase{name: "Downloaded files present"}
	for _, m := range manifests {
		for _, f := range fileFeatures(m.fc) {
			status := domain.OutcomeStatus(f.PropertyMustString(manifest.PropStatus))
			if status != domain.StatusDownloaded && status != domain.StatusSkipped {
				continue
			}
			path := filepath.Join(outputDir, m.datasetType,
				f.PropertyMustString(manifest.PropProject), f.PropertyMustString(manifest.PropFile))
			info, err := os.Stat(path)
			switch {
			case err != nil:
				p.errorf("%s: %v", path, err)
			case !info.Mode().IsRegular():
				p.errorf("%s: not a regular file", path)
			case info.Size() == 0:
				p.errorf("%s: empty", path)
			}
		}
	}
	return p
}

func verifyNoPartials(outputDir string) *phase {
	p := &phase{name: "No partial downloads"}
	var partials []string
	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".part") {
			partials = append(partials, path)
		}
		return nil
	})
	if err != nil {
		p.errorf("walk %s: %v", outputDir, err)
	}
	sort.Strings(partials)
	for _, path := range partials {
		p.errorf("leftover %s", path)
	}
	return p
}

func fileFeatures(fc *geojson.FeatureCollection) []*geojson.Feature {
	var out []*geojson.Feature
	for _, f := range fc.Features {
		if f.PropertyMustString(manifest.PropRole) == manifest.RoleFile {
			out = append(out, f)
		}
	}
	return out
}

func countStatuses(manifests []loaded) map[domain.OutcomeStatus]int {
	counts := make(map[domain.OutcomeStatus]int)
	for _, m := range manifests {
		for _, f := range fileFeatures(m.fc) {
			counts[domain.OutcomeStatus(f.PropertyMustString(manifest.PropStatus))]++
		}
	}
	return counts
}
