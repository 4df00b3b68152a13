// Package manifest records what a run placed on disk as GeoJSON, one
// FeatureCollection per dataset type.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	geojson "github.com/paulmach/go.geojson"
)

// FileName is the manifest written into each <output_dir>/<type>/ directory.
const FileName = "manifest.geojson"

// Property keys shared with readers of the manifest.
const (
	PropRole          = "role"
	PropRunID         = "run_id"
	PropDatasetType   = "dataset_type"
	PropProject       = "project"
	PropFile          = "file"
	PropTitle         = "title"
	PropURL           = "url"
	PropPath          = "path"
	PropStatus        = "status"
	PropBytes         = "bytes"
	PropError         = "error"
	PropErrorKind     = "error_kind"
	PropIntersectsAOI = "intersects_aoi"
	PropPublished     = "publication_date"

	RoleAOI  = "aoi"
	RoleFile = "file"
)

// Writer writes manifests.
type Writer struct{}

// NewWriter creates a manifest Writer.
func NewWriter() *Writer { return &Writer{} }

// Write builds one manifest per dataset type present in outcomes and writes
// it atomically under outputDir. It returns the paths written.
func (w *Writer) Write(outputDir, runID string, aoi domain.BoundingBox, outcomes []domain.DownloadOutcome) ([]string, error) {
	var order []string
	byType := make(map[string][]domain.DownloadOutcome)
	for _, o := range outcomes {
		dt := o.Target.DatasetType
		if _, ok := byType[dt]; !ok {
			order = append(order, dt)
		}
		byType[dt] = append(byType[dt], o)
	}

	paths := make([]string, 0, len(order))
	for _, dt := range order {
		fc := Build(runID, dt, aoi, byType[dt])
		data, err := fc.MarshalJSON()
		if err != nil {
			return paths, fmt.Errorf("marshal %s manifest: %w", dt, err)
		}
		path := filepath.Join(outputDir, dt, FileName)
		if err := writeAtomic(path, data); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Build assembles the FeatureCollection for one dataset type: the AOI
// polygon followed by one feature per file.
func Build(runID, datasetType string, aoi domain.BoundingBox, outcomes []domain.DownloadOutcome) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	area := geojson.NewPolygonFeature([][][]float64{aoi.Ring()})
	area.SetProperty(PropRole, RoleAOI)
	area.SetProperty(PropRunID, runID)
	area.SetProperty(PropDatasetType, datasetType)
	fc.AddFeature(area)

	aoiBound := aoi.Bound()
	for _, o := range outcomes {
		r := o.Target.Result

		var f *geojson.Feature
		if r.Extent != nil {
			ext := domain.BoundingBox{MinLon: r.Extent.West(), MinLat: r.Extent.South(), MaxLon: r.Extent.East(), MaxLat: r.Extent.North()}
			f = geojson.NewPolygonFeature([][][]float64{ext.Ring()})
			f.SetProperty(PropIntersectsAOI, r.Extent.Intersects(aoiBound))
		} else {
			f = geojson.NewFeature(nil)
		}

		f.SetProperty(PropRole, RoleFile)
		f.SetProperty(PropDatasetType, o.Target.DatasetType)
		f.SetProperty(PropProject, o.Target.Project)
		f.SetProperty(PropFile, r.FileName)
		f.SetProperty(PropURL, r.DownloadURL)
		f.SetProperty(PropPath, o.Path)
		f.SetProperty(PropStatus, string(o.Status))
		f.SetProperty(PropBytes, o.Bytes)
		if r.Title != "" {
			f.SetProperty(PropTitle, r.Title)
		}
		if r.PublicationDate != "" {
			f.SetProperty(PropPublished, r.PublicationDate)
		}
		if o.Err != nil {
			f.SetProperty(PropError, o.Err.Error())
			f.SetProperty(PropErrorKind, string(o.Err.Kind))
		}
		fc.AddFeature(f)
	}
	return fc
}

// Read loads a manifest written by Write.
func Read(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}
