package domain

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	geo "github.com/paulmach/go.geo"
)

// UnassignedProject groups results whose project cannot be determined.
const UnassignedProject = "unassigned"

// SearchResult is one downloadable file reported by the products API.
type SearchResult struct {
	DatasetType     string     `json:"dataset_type"`
	ProductName     string     `json:"product_name"`
	Title           string     `json:"title"`
	DownloadURL     string     `json:"download_url"`
	FileName        string     `json:"file_name"`
	ProjectID       string     `json:"project_id"`
	Format          string     `json:"format"`
	PublicationDate string     `json:"publication_date,omitempty"`
	SizeBytes       int64      `json:"size_bytes,omitempty"`
	Extent          *geo.Bound `json:"-"`
}

// Validate reports whether the record can be downloaded. Failures wrap
// ErrMalformedRecord.
func (r SearchResult) Validate() error {
	if strings.TrimSpace(r.DownloadURL) == "" {
		return fmt.Errorf("%w: missing download URL (title %q)", ErrMalformedRecord, r.Title)
	}
	if !validFileName(r.FileName) {
		return fmt.Errorf("%w: no file name in %q", ErrMalformedRecord, r.DownloadURL)
	}
	return nil
}

// Project returns the project id, or UnassignedProject when none is known.
func (r SearchResult) Project() string {
	if p := strings.TrimSpace(r.ProjectID); validFileName(p) {
		return p
	}
	return UnassignedProject
}

// FileNameFromURL returns the last path segment of a download URL.
func FileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if !validFileName(name) {
		return ""
	}
	return name
}

// ProjectFromURL returns the path segment that follows "Projects/" in a
// staged products URL, e.g.
//
//	https://rockyweb.usgs.gov/vdelivery/Datasets/Staged/Elevation/1m/Projects/GA_Statewide_2018/TIFF/x.tif
//
// yields "GA_Statewide_2018". It returns "" when the URL has no such segment.
func ProjectFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, s := range segments {
		if s == "Projects" && i+1 < len(segments) {
			if validFileName(segments[i+1]) {
				return segments[i+1]
			}
			return ""
		}
	}
	return ""
}

func validFileName(name string) bool {
	switch name {
	case "", ".", "..", "/":
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
