// Package tiler encodes station clusters as Mapbox vector tiles.
//
// Tiles are cut from a cluster index per request, so they always match the
// clusters a map session would see at the same integer zoom. Plain mode
// (clustering off) tiles every station as its own feature.
package tiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-moisture/internal/cluster"
	"github.com/joeblew999/plat-moisture/internal/layer"
)

// DefaultLayer is the vector tile layer name.
const DefaultLayer = "stations"

// MaxZoom is the deepest tile zoom served.
const MaxZoom = 22

// Encode projects features into tile t and returns the gzipped MVT. A tile
// with no features encodes to nil.
func Encode(t maptile.Tile, features []cluster.Feature, plain bool, name string) ([]byte, error) {
	if name == "" {
		name = DefaultLayer
	}
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		gf := f.GeoJSON()
		props := scalarProperties(gf.Properties)
		if f.IsCluster() {
			props["icon"] = layer.IconName(f.Count)
			props["size"] = layer.IconSize(f.Count)
		} else {
			props["id"] = f.Point.ID
			if plain {
				props["icon"], props["size"] = layer.PlainIcon, 1.0
			} else {
				props["icon"], props["size"] = layer.IconName(1), layer.IconSize(1)
			}
		}
		// String ids are carried as properties; MVT ids are integers.
		out := geojson.NewFeature(f.Position)
		out.Properties = props
		fc.Append(out)
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	l := mvt.NewLayer(name, fc)
	l.ProjectToTile(t)
	data, err := mvt.MarshalGzipped(mvt.Layers{l})
	if err != nil {
		return nil, fmt.Errorf("encoding tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}
	return data, nil
}

// scalarProperties keeps the property values MVT can carry.
func scalarProperties(in geojson.Properties) geojson.Properties {
	out := make(geojson.Properties, len(in)+3)
	for k, v := range in {
		switch v.(type) {
		case string, bool, float64, float32, int, int32, int64, uint, uint32, uint64:
			out[k] = v
		}
	}
	return out
}

// Valid reports whether (z, x, y) addresses a real tile.
func Valid(z, x, y int) bool {
	if z < 0 || z > MaxZoom {
		return false
	}
	n := 1 << z
	return x >= 0 && x < n && y >= 0 && y < n
}

// ClusterTile cuts tile t from idx.
func ClusterTile(idx *cluster.Index, t maptile.Tile, name string) ([]byte, error) {
	if idx == nil {
		return nil, nil
	}
	return Encode(t, idx.Tile(int(t.Z), int(t.X), int(t.Y)), false, name)
}

// PlainTile tiles every point that falls in t.
func PlainTile(points []cluster.Point, t maptile.Tile, name string) ([]byte, error) {
	b := t.Bound()
	var features []cluster.Feature
	for i := range points {
		p := points[i]
		if b.Contains(p.Position) {
			features = append(features, cluster.Feature{Position: p.Position, Count: 1, Point: &p})
		}
	}
	return Encode(t, features, true, name)
}

// TilesCovering returns the distinct tiles at zoom that contain at least one
// of the positions, in first-seen order.
func TilesCovering(positions []orb.Point, zoom maptile.Zoom) []maptile.Tile {
	seen := make(map[maptile.Tile]struct{})
	var tiles []maptile.Tile
	for _, p := range positions {
		t := maptile.At(p, zoom)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tiles = append(tiles, t)
	}
	return tiles
}

// ExportDir writes the non-empty cluster tiles of zooms minZoom..maxZoom to
// dir as {z}/{x}/{y}.mvt and returns how many were written.
func ExportDir(idx *cluster.Index, dir string, minZoom, maxZoom int, name string) (int, error) {
	if minZoom < 0 {
		minZoom = 0
	}
	if maxZoom > MaxZoom {
		maxZoom = MaxZoom
	}
	world := orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{180, 85}}

	written := 0
	for z := minZoom; z <= maxZoom; z++ {
		var positions []orb.Point
		for _, f := range idx.QueryVisible(world, float64(z)) {
			positions = append(positions, f.Position)
		}
		for _, t := range TilesCovering(positions, maptile.Zoom(z)) {
			data, err := ClusterTile(idx, t, name)
			if err != nil {
				return written, err
			}
			if data == nil {
				continue
			}
			path := filepath.Join(dir, strconv.Itoa(z), strconv.Itoa(int(t.X)), strconv.Itoa(int(t.Y))+".mvt")
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return written, err
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}
