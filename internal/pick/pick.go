// Package pick turns a pointer pick on the station layer into a domain
// action. Resolve is pure and only reads the cluster index; Dispatcher
// performs the side effects.
package pick

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-moisture/internal/cluster"
)

// MaxLeaves bounds the member points attached to a cluster pick.
const MaxLeaves = 25

// Mode is the kind of pointer interaction.
type Mode string

const (
	ModeClick Mode = "click"
	ModeHover Mode = "hover"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeClick, ModeHover:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown pick mode %q", s)
}

// Source is the part of the cluster index a resolver reads.
type Source interface {
	ExpansionZoom(h cluster.Handle) (int, error)
	Leaves(h cluster.Handle, limit, offset int) ([]cluster.Point, error)
}

// Pixel is a screen position.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RawPick is the feature under the pointer, if any.
type RawPick struct {
	Feature *cluster.Feature
	Pixel   Pixel
}

// Resolution is one of NoPick, PointPick or ClusterPick.
type Resolution interface {
	At() Pixel
	isResolution()
}

// NoPick means nothing was under the pointer.
type NoPick struct {
	Pixel Pixel
}

// PointPick is a single station.
type PointPick struct {
	Point cluster.Point
	Pixel Pixel
}

// ClusterPick is an aggregate with its expansion zoom and up to MaxLeaves
// members.
type ClusterPick struct {
	Handle        cluster.Handle
	Center        orb.Point
	Count         int
	ExpansionZoom int
	Leaves        []cluster.Point
	Pixel         Pixel
}

func (p NoPick) At() Pixel      { return p.Pixel }
func (p PointPick) At() Pixel   { return p.Pixel }
func (p ClusterPick) At() Pixel { return p.Pixel }

func (NoPick) isResolution()      {}
func (PointPick) isResolution()   {}
func (ClusterPick) isResolution() {}

// Resolve classifies raw against src. Errors come only from the index and
// indicate a handle from another generation.
func Resolve(raw RawPick, src Source) (Resolution, error) {
	f := raw.Feature
	if f == nil || (!f.IsCluster() && f.Point == nil) {
		return NoPick{Pixel: raw.Pixel}, nil
	}
	if !f.IsCluster() {
		return PointPick{Point: *f.Point, Pixel: raw.Pixel}, nil
	}

	leaves, err := src.Leaves(f.Cluster, MaxLeaves, 0)
	if err != nil {
		return nil, fmt.Errorf("resolving cluster leaves: %w", err)
	}
	zoom, err := src.ExpansionZoom(f.Cluster)
	if err != nil {
		return nil, fmt.Errorf("resolving cluster expansion zoom: %w", err)
	}
	return ClusterPick{
		Handle:        f.Cluster,
		Center:        f.Position,
		Count:         f.Count,
		ExpansionZoom: zoom,
		Leaves:        leaves,
		Pixel:         raw.Pixel,
	}, nil
}
