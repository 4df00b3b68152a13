package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RunOptions are the per-invocation inputs: what to fetch and where to put it.
type RunOptions struct {
	AOI       []float64
	Types     []string
	Variants  []string
	OutputDir string
	// ListCatalog prints the catalog instead of running.
	ListCatalog bool
}

// ParseRunOptions parses command line arguments. Values from a --config file
// (JSON or YAML, keys aoi, type, output_dir, variant) act as defaults that
// flags override.
func ParseRunOptions(args []string, output io.Writer) (*RunOptions, error) {
	fs := pflag.NewFlagSet("usgsfetch", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.String("config", "", "JSON or YAML file supplying defaults for aoi, type, output_dir, variant")
	fs.String("aoi", "", "area of interest as minLon,minLat,maxLon,maxLat")
	fs.String("type", "", "dataset type to fetch: dem, lidar, both, or a comma separated list")
	fs.String("output-dir", "", "directory that receives <type>/<project>/<file>")
	fs.StringSlice("variant", nil, "catalog variants to query instead of the defaults of the types that define them, e.g. seamless")
	fs.Bool("list-catalog", false, "print the dataset catalog and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, flag := range map[string]string{
		"aoi":          "aoi",
		"type":         "type",
		"output_dir":   "output-dir",
		"variant":      "variant",
		"list_catalog": "list-catalog",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	opts := &RunOptions{
		OutputDir:   strings.TrimSpace(v.GetString("output_dir")),
		Types:       ExpandTypes(v.GetString("type")),
		Variants:    cleanList(v.GetStringSlice("variant")),
		ListCatalog: v.GetBool("list_catalog"),
	}
	if opts.ListCatalog {
		return opts, nil
	}

	aoi, err := ParseAOI(v.Get("aoi"))
	if err != nil {
		return nil, err
	}
	opts.AOI = aoi

	var missing []string
	if len(opts.AOI) == 0 {
		missing = append(missing, "aoi")
	}
	if len(opts.Types) == 0 {
		missing = append(missing, "type")
	}
	if opts.OutputDir == "" {
		missing = append(missing, "output_dir")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required arguments: %s", strings.Join(missing, ", "))
	}
	return opts, nil
}

// ExpandTypes splits a type argument into dataset type keys. "both" is
// shorthand for dem and lidar.
func ExpandTypes(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range splitList(s) {
		t = strings.ToLower(t)
		keys := []string{t}
		if t == "both" {
			keys = []string{"dem", "lidar"}
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// ParseAOI accepts the AOI as a string ("a,b,c,d" or "a b c d") or as a
// list from a config file. A nil value yields no coordinates.
func ParseAOI(raw any) ([]float64, error) {
	var parts []any
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		for _, p := range splitList(t) {
			parts = append(parts, p)
		}
	case []any:
		parts = t
	case []float64:
		return t, nil
	case []string:
		for _, p := range t {
			parts = append(parts, p)
		}
	default:
		return nil, fmt.Errorf("aoi: unsupported value %v", raw)
	}
	if len(parts) == 0 {
		return nil, nil
	}

	coords := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := cast.ToFloat64E(p)
		if err != nil {
			return nil, errors.New("aoi: coordinates must be numbers")
		}
		coords = append(coords, f)
	}
	return coords, nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		out = append(out, splitList(s)...)
	}
	return out
}
