// Package station loads soil moisture observation stations from GeoJSON.
//
// A Collection is immutable once built and is shared read-only between the
// map layer, search and the HTTP API. A data change is always a new
// Collection, so pointer identity is the change signal.
package station

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-moisture/internal/cluster"
)

// Properties is the typed view of a station feature's properties.
type Properties struct {
	ObservationID   int      `json:"observation_id" doc:"Observation row id"`
	StationID       string   `json:"station_id" doc:"Station identifier" example:"SM-0042"`
	StationName     string   `json:"station_name" doc:"Display name" example:"Lincoln"`
	RecordStartDate string   `json:"record_start_date,omitempty" doc:"First recorded date"`
	RecordEndDate   string   `json:"record_end_date,omitempty" doc:"Last recorded date"`
	GeoHash         string   `json:"geo_hash,omitempty" doc:"Geohash of the station location"`
	Elevation       string   `json:"elevation,omitempty" doc:"Elevation"`
	DataDepth       string   `json:"data_depth,omitempty" doc:"Sensor depth"`
	FieldCapacity   *float64 `json:"field_capacity,omitempty" doc:"Field capacity"`
	WiltingPoint    *float64 `json:"wilting_point,omitempty" doc:"Wilting point"`
}

// Station is one observation station.
type Station struct {
	feature *geojson.Feature
}

// ID returns the station_id property, falling back to the feature id.
func (s Station) ID() string {
	if id := s.feature.Properties.MustString("station_id", ""); id != "" {
		return id
	}
	switch v := s.feature.ID.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// Name returns the station_name property.
func (s Station) Name() string {
	return s.feature.Properties.MustString("station_name", "")
}

// Position returns the station coordinate.
func (s Station) Position() orb.Point {
	return s.feature.Point()
}

// Feature returns the underlying GeoJSON feature. Callers must not modify it.
func (s Station) Feature() *geojson.Feature { return s.feature }

// Properties decodes the typed property view. Fields are read one at a time
// so a number where text is expected, or the reverse, is converted rather
// than blanking the whole view.
func (s Station) Properties() Properties {
	props := s.feature.Properties
	p := Properties{
		StationID:       s.ID(),
		StationName:     propText(props["station_name"]),
		RecordStartDate: propText(props["record_start_date"]),
		RecordEndDate:   propText(props["record_end_date"]),
		GeoHash:         propText(props["geo_hash"]),
		Elevation:       propText(props["elevation"]),
		DataDepth:       propText(props["data_depth"]),
		FieldCapacity:   propNumber(props["field_capacity"]),
		WiltingPoint:    propNumber(props["wilting_point"]),
	}
	if n := propNumber(props["observation_id"]); n != nil {
		p.ObservationID = int(*n)
	}
	return p
}

func propText(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func propNumber(v any) *float64 {
	switch v := v.(type) {
	case float64:
		return &v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &f
		}
	}
	return nil
}

// Collection is an immutable set of stations.
type Collection struct {
	stations []Station
	byID     map[string]int
	skipped  int
}

// Decode reads a GeoJSON FeatureCollection.
func Decode(r io.Reader) (*Collection, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading stations: %w", err)
	}
	return DecodeBytes(b)
}

// DecodeBytes parses a GeoJSON FeatureCollection.
func DecodeBytes(b []byte) (*Collection, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return New(nil), nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("parsing stations geojson: %w", err)
	}
	return FromFeatureCollection(fc), nil
}

// LoadFile reads a GeoJSON file.
func LoadFile(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// FromFeatureCollection keeps the point features of fc with finite
// coordinates. Everything else is counted as skipped.
func FromFeatureCollection(fc *geojson.FeatureCollection) *Collection {
	if fc == nil {
		return New(nil)
	}
	c := New(nil)
	for _, f := range fc.Features {
		if f == nil {
			c.skipped++
			continue
		}
		p, ok := f.Geometry.(orb.Point)
		if !ok || !validCoord(p) {
			c.skipped++
			continue
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		c.add(Station{feature: f})
	}
	return c
}

// New builds a collection from already validated features.
func New(features []*geojson.Feature) *Collection {
	c := &Collection{byID: make(map[string]int)}
	for _, f := range features {
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		c.add(Station{feature: f})
	}
	return c
}

func (c *Collection) add(s Station) {
	c.stations = append(c.stations, s)
	if id := s.ID(); id != "" {
		if _, dup := c.byID[id]; !dup {
			c.byID[id] = len(c.stations) - 1
		}
	}
}

func validCoord(p orb.Point) bool {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lat >= -90 && lat <= 90
}

// Len returns the number of stations. A nil collection is empty.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.stations)
}

// Skipped returns the number of features dropped while decoding.
func (c *Collection) Skipped() int {
	if c == nil {
		return 0
	}
	return c.skipped
}

// All returns the stations in input order.
func (c *Collection) All() []Station {
	if c == nil {
		return nil
	}
	return c.stations
}

// Get looks up a station by id.
func (c *Collection) Get(id string) (Station, bool) {
	if c == nil {
		return Station{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Station{}, false
	}
	return c.stations[i], true
}

// Points converts the stations to clustering input.
func (c *Collection) Points() []cluster.Point {
	if c == nil {
		return nil
	}
	out := make([]cluster.Point, len(c.stations))
	for i, s := range c.stations {
		out[i] = cluster.Point{
			ID:         s.ID(),
			Position:   s.Position(),
			Properties: s.feature.Properties,
		}
	}
	return out
}

// FeatureCollection returns the stations as GeoJSON.
func (c *Collection) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range c.All() {
		fc.Append(s.feature)
	}
	return fc
}

// Search returns stations whose name or id contains q, case-insensitively,
// in input order.
func (c *Collection) Search(q string, limit int) []Station {
	q = strings.ToLower(strings.TrimSpace(q))
	var out []Station
	for _, s := range c.All() {
		if limit > 0 && len(out) >= limit {
			break
		}
		if q == "" ||
			strings.Contains(strings.ToLower(s.Name()), q) ||
			strings.Contains(strings.ToLower(s.ID()), q) {
			out = append(out, s)
		}
	}
	return out
}
