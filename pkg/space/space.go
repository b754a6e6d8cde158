// Package space names the coordinate systems data can live in and decides
// which kind of transform links two of them.
package space

import (
	"fmt"
	"strings"

	"nsdmap/internal/models"
)

// Space identifies a coordinate system: a volumetric grid, the MNI
// whole-brain space, a hemisphere-qualified native surface such as
// "lh.white", or the group-average surface. Spaces compare by string equality.
type Space string

const (
	Anat0pt5  Space = "anat0pt5"
	Anat0pt8  Space = "anat0pt8"
	Anat1pt0  Space = "anat1pt0"
	Func1pt0  Space = "func1pt0"
	Func1pt8  Space = "func1pt8"
	MNI       Space = "MNI"
	FSAverage Space = "fsaverage"
)

// Surface layers available on each hemisphere. layerB1..B3 are the
// depth-interpolated cortical layers.
var surfaceLayers = []string{"white", "pial", "layerB1", "layerB2", "layerB3"}

var volumeSpaces = []Space{Anat0pt5, Anat0pt8, Anat1pt0, Func1pt0, Func1pt8, MNI}

// Known lists every valid space name in a stable order.
func Known() []Space {
	out := append([]Space(nil), volumeSpaces...)
	for _, hemi := range []string{"lh", "rh"} {
		for _, layer := range surfaceLayers {
			out = append(out, Space(hemi+"."+layer))
		}
	}
	return append(out, FSAverage)
}

// Parse validates a space name.
func Parse(s string) (Space, error) {
	s = strings.TrimSpace(s)
	for _, k := range Known() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown space %q", models.ErrConfiguration, s)
}

// ParseList validates a comma-separated list of space names.
func ParseList(s string) ([]Space, error) {
	var out []Space
	for _, part := range strings.Split(s, ",") {
		sp, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// Hemisphere returns "lh" or "rh" for a hemisphere-qualified surface and ""
// for everything else.
func (s Space) Hemisphere() string {
	str := string(s)
	if strings.HasPrefix(str, "lh.") || strings.HasPrefix(str, "rh.") {
		return str[:2]
	}
	return ""
}

// IsNativeSurface reports whether s is hemisphere-qualified.
func (s Space) IsNativeSurface() bool { return s.Hemisphere() != "" }

// IsSurface reports whether data in s is indexed by vertex.
func (s Space) IsSurface() bool { return s.IsNativeSurface() || s == FSAverage }

// Layer strips the hemisphere prefix ("lh.pial" -> "pial").
func (s Space) Layer() string {
	if s.IsNativeSurface() {
		return string(s)[3:]
	}
	return string(s)
}

// Geometry describes a volumetric target grid.
type Geometry struct {
	// VoxelSize is the voxel edge length in mm
	VoxelSize float64

	// Res is the cubic grid size used when scattering surfaces into this
	// space; 0 means surfaces cannot be mapped here
	Res int
}

var geometries = map[Space]Geometry{
	Anat0pt5: {VoxelSize: 0.5, Res: 512},
	Anat0pt8: {VoxelSize: 0.8, Res: 320},
	Anat1pt0: {VoxelSize: 1.0, Res: 256},
	Func1pt0: {VoxelSize: 1.0},
	Func1pt8: {VoxelSize: 1.8},
	MNI:      {VoxelSize: 1.0},
}

// TargetGeometry returns the grid geometry of a volumetric space.
func TargetGeometry(s Space) (Geometry, bool) {
	g, ok := geometries[s]
	return g, ok
}
