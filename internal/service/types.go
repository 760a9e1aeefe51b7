// Package service contains the application services behind the soil
// moisture map: station loading and search, persisted layer settings, and
// per-browser map sessions.
package service

// Settings are the user-adjustable station layer settings.
type Settings struct {
	SizeScale  float64 `json:"sizeScale" minimum:"1" maximum:"500" default:"30" doc:"Icon size scale; the clustering radius is sizeScale*sqrt(2)" example:"30"`
	Clustering bool    `json:"clustering" default:"true" doc:"Group nearby stations into clusters"`
	Pickable   bool    `json:"pickable" default:"true" doc:"Whether stations respond to hover and click"`
	MapStyle   string  `json:"mapStyle,omitempty" doc:"Base map style URL"`
	IconAtlas  string  `json:"iconAtlas,omitempty" doc:"Icon atlas image URL" example:"/static/icons/location-icon-atlas.png"`
}

// SourceFile is a station GeoJSON file in the data directory.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"stations.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}

// StationSummary is the search and listing view of a station.
type StationSummary struct {
	ID        string  `json:"id" doc:"Station identifier" example:"SM-001"`
	Name      string  `json:"name" doc:"Display name" example:"Lincoln"`
	Longitude float64 `json:"longitude" doc:"WGS84 longitude"`
	Latitude  float64 `json:"latitude" doc:"WGS84 latitude"`
}
