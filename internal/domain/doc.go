// Package domain models elevation products served by The National Map (TNM).
//
// # Data Source
//
// File listings come from the TNM Access products API at
// https://tnmaccess.nationalmap.gov/api/v1/products. A request names one
// product ("datasets"), a bounding box, and optionally a file format filter
// ("prodFormats"). Results are paged with "max" and "offset"; the response
// carries the overall "total" and an "items" array.
//
// # TNM Conventions
//
// Bounding box:
//
//	"minLon,minLat,maxLon,maxLat" in WGS84 decimal degrees,
//	e.g. "-84.45688,33.62848,-84.40212,33.65607".
//
// Product names are the human-readable TNM dataset titles, matched exactly:
//
//	"Digital Elevation Model (DEM) 1 meter"
//	"Lidar Point Cloud (LPC)"
//
// Format filters are comma separated lists, e.g. "LAS,LAZ" or "GeoTIFF".
//
// Download URLs point into the staged products tree. The project is the
// directory directly under "Projects/":
//
//	.../Elevation/1m/Projects/GA_Statewide_2018/TIFF/USGS_1M_16_x74y373_GA_Statewide_2018.tif
//	                         ^^^^^^^^^^^^^^^^^^
//
// Files with no "Projects/" segment are grouped under "unassigned".
//
// Item extents are reported as "boundingBox" {minX, maxX, minY, maxY} in
// degrees and are carried as the file footprint.
//
// # On-disk Layout
//
//	<output_dir>/<dataset_type>/<project>/<file_name>
package domain
