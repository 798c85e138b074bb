// Package domain models NOAA Coral Reef Watch (CRW) gridded thermal-stress
// data and the spatial reduction from global rasters to per-site extracts.
//
// # Data Source
//
// Daily rasters originate from the NOAA CRW 5km (v3.1) satellite product
// suite, published as NetCDF files on the STAR archive
// (https://www.star.nesdis.noaa.gov/pub/socd/mecb/crw/data/5km/). Four
// products are consumed:
//
//	sst   sea-surface temperature, °C (server file prefix "coraltemp")
//	ssta  SST anomaly relative to the climatological baseline, °C
//	hs    bleaching HotSpot, °C above the maximum monthly mean
//	dhw   degree heating weeks, °C-weeks of accumulated stress
//
// A separate climatology file (ct5km_climatology_v3.1.nc) carries twelve
// monthly-mean variables named sst_clim_january through sst_clim_december.
//
// # Grid Conventions
//
// CRW grids are regular latitude/longitude grids with 0.05° cells on the
// WGS-84 ellipsoid. Values are packed as int16 with a scale_factor
// attribute (typically 0.01) and a _FillValue sentinel for land and
// missing-retrieval cells. On load, packed values are unscaled to float64
// and fill values become NaN; NaN is the only in-memory no-data
// representation, and no-data cells are never emitted downstream.
//
// Rasters are normalized to ascending latitude and longitude regardless of
// the storage order in the source file, so row 0/column 0 is always the
// south-west corner and (row, col) maps affinely to a cell-center
// coordinate.
//
// # Boundary Inclusion Policy
//
// Site membership of a grid cell is decided by testing the cell center
// against the site's rings with an even-odd crossing rule. A center that
// lies exactly on a ring edge counts as inside. Geometry libraries disagree
// on edge handling, so the containment fold is implemented here rather than
// delegated to a library default; see [Site.Contains].
//
// # Sites
//
// Site boundaries are 5 km buffer polygons around three Indonesian
// conservation areas, loaded once per run from shapefiles:
//
//	GM  Gili Matra
//	GN  Gita Nada
//	NP  Nusa Penida
//
// # Output
//
// Extracts are flat xyz text tables: one "longitude latitude value" record
// per line, one file per (date, site, product). Climatological summaries
// reduce multi-year per-site series to twelve monthly means plus the MMM
// (maximum of monthly means), the baseline against which HotSpot and DHW
// bleaching-alert levels are derived.
package domain
