package transform

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"nsdmap/internal/models"
)

// Source is data handed to the Mapper: one of VolumeData, ComplexData,
// SurfaceData, File or List.
type Source interface {
	isSource()
}

// VolumeData is a single volume, or a stack of volumes sharing one grid.
type VolumeData struct {
	Volumes models.Stack
	Type    models.DataType
}

// ComplexData is a single complex-valued volume.
type ComplexData struct {
	Volume *models.ComplexVolume
}

// SurfaceData holds vertices x datasets values.
type SurfaceData struct {
	Values *mat.Dense
	Type   models.DataType
}

// File references a .nii, .nii.gz, .mgh or .mgz on disk.
type File string

// List concatenates surface data along the vertex axis, in order. Entries
// may mix SurfaceData and File.
type List []Source

func (VolumeData) isSource()  {}
func (ComplexData) isSource() {}
func (SurfaceData) isSource() {}
func (File) isSource()        {}
func (List) isSource()        {}

// Single wraps one volume as VolumeData.
func Single(v *models.Volume) VolumeData {
	return VolumeData{Volumes: models.Stack{v}}
}

// Normalized is source data in the layout the engines consume. Exactly
// one of Volumes, Complex and Surface is set.
type Normalized struct {
	Volumes models.Stack
	Complex *models.ComplexVolume
	Surface *mat.Dense

	// Type is the element class of the original data
	Type models.DataType
}

// Datasets returns D, the number of independent datasets.
func (n *Normalized) Datasets() int {
	switch {
	case n.Surface != nil:
		_, c := n.Surface.Dims()
		return c
	case n.Complex != nil:
		return 1
	}
	return len(n.Volumes)
}

// Normalize turns src into engine layout. surface selects vertex-indexed
// data (V x D) over volumetric data; files are reshaped accordingly.
func Normalize(src Source, surface bool, r Reader) (*Normalized, error) {
	switch s := src.(type) {
	case VolumeData:
		if surface {
			return nil, fmt.Errorf("%w: volume data given for a surface source", models.ErrConfiguration)
		}
		if len(s.Volumes) == 0 {
			return nil, fmt.Errorf("%w: empty volume stack", models.ErrConfiguration)
		}
		grid := s.Volumes.Dims()
		for i, v := range s.Volumes {
			if v.Dims != grid || v.Len() != grid[0]*grid[1]*grid[2] {
				return nil, fmt.Errorf("%w: volume %d does not match the %v grid", models.ErrConfiguration, i, grid)
			}
		}
		return &Normalized{Volumes: s.Volumes, Type: s.Type}, nil

	case ComplexData:
		if surface {
			return nil, fmt.Errorf("%w: complex data given for a surface source", models.ErrConfiguration)
		}
		if s.Volume == nil {
			return nil, fmt.Errorf("%w: nil complex volume", models.ErrConfiguration)
		}
		return &Normalized{Complex: s.Volume, Type: models.Complex128}, nil

	case SurfaceData:
		if !surface {
			return nil, fmt.Errorf("%w: surface data given for a volume source", models.ErrConfiguration)
		}
		if s.Values == nil {
			return nil, fmt.Errorf("%w: nil surface data", models.ErrConfiguration)
		}
		return &Normalized{Surface: s.Values, Type: s.Type}, nil

	case File:
		return normalizeFile(string(s), surface, r)

	case List:
		return normalizeList(s, surface, r)
	}
	return nil, fmt.Errorf("%w: unsupported source %T", models.ErrConfiguration, src)
}

func normalizeFile(path string, surface bool, r Reader) (*Normalized, error) {
	im, err := r.ReadImage(path)
	if err != nil {
		return nil, fmt.Errorf("loading source: %w", err)
	}
	if surface {
		m, err := im.Matrix()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &Normalized{Surface: m, Type: im.Type}, nil
	}
	if im.IsComplex() {
		cv, err := im.ComplexVolume()
		if err != nil {
			return nil, err
		}
		return &Normalized{Complex: cv, Type: models.Complex128}, nil
	}
	stack, err := im.Stack()
	if err != nil {
		return nil, err
	}
	return &Normalized{Volumes: stack, Type: im.Type}, nil
}

func normalizeList(list List, surface bool, r Reader) (*Normalized, error) {
	if !surface {
		return nil, fmt.Errorf("%w: lists of sources are only valid for surfaces", models.ErrConfiguration)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: empty source list", models.ErrConfiguration)
	}
	var out *Normalized
	for i, entry := range list {
		if _, nested := entry.(List); nested {
			return nil, fmt.Errorf("%w: nested source list at %d", models.ErrConfiguration, i)
		}
		n, err := Normalize(entry, true, r)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = n
			continue
		}
		_, have := out.Surface.Dims()
		if _, c := n.Surface.Dims(); c != have {
			return nil, fmt.Errorf("%w: list entry %d has %d datasets, want %d",
				models.ErrConfiguration, i, c, have)
		}
		var s mat.Dense
		s.Stack(out.Surface, n.Surface)
		out.Surface = &s
	}
	return out, nil
}
