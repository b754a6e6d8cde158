package space

import (
	"fmt"
	"path/filepath"

	"nsdmap/internal/models"
)

// Kind numbers the four transform cases.
type Kind int

const (
	VolumeToVolume  Kind = 1
	VolumeToSurface Kind = 2
	SurfaceToGroup  Kind = 3
	SurfaceToVolume Kind = 4
)

func (k Kind) String() string {
	switch k {
	case VolumeToVolume:
		return "volume-to-volume"
	case VolumeToSurface:
		return "volume-to-nativesurface"
	case SurfaceToGroup:
		return "nativesurface-to-fsaverage"
	case SurfaceToVolume:
		return "nativesurface-to-volume"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Case is the classified transform, carrying the transform file path(s) it
// needs. It is one of *VolumeCase, *SurfaceCase or *ScatterCase.
type Case interface {
	Kind() Kind
	Target() Space
	// Files lists transform files in load order.
	Files() []string
}

// VolumeCase resamples a volume into another volume (case 1).
type VolumeCase struct {
	Source, To Space
	File       string
}

func (c *VolumeCase) Kind() Kind      { return VolumeToVolume }
func (c *VolumeCase) Target() Space   { return c.To }
func (c *VolumeCase) Files() []string { return []string{c.File} }

// SurfaceCase maps onto a surface: from a volume by interpolation (case 2),
// or between a native surface and fsaverage by index lookup (case 3).
type SurfaceCase struct {
	Source, To Space
	Hemi       string
	File       string
	Group      bool // true for case 3
}

func (c *SurfaceCase) Kind() Kind {
	if c.Group {
		return SurfaceToGroup
	}
	return VolumeToSurface
}
func (c *SurfaceCase) Target() Space   { return c.To }
func (c *SurfaceCase) Files() []string { return []string{c.File} }

// ScatterCase accumulates one or more native surfaces into a volume (case 4).
type ScatterCase struct {
	Sources []Space
	To      Space
	Paths   []string // one per source, same order
}

func (c *ScatterCase) Kind() Kind      { return SurfaceToVolume }
func (c *ScatterCase) Target() Space   { return c.To }
func (c *ScatterCase) Files() []string { return append([]string(nil), c.Paths...) }

// Classify determines the case for a single source space and builds the
// transform file path under tdir. No files are touched.
func Classify(source, target Space, tdir string) Case {
	switch {
	case source == FSAverage || target == FSAverage:
		return surfaceCase(source, target, tdir, true)
	case target.IsNativeSurface():
		return surfaceCase(source, target, tdir, false)
	case source.IsNativeSurface():
		return scatterCase([]Space{source}, target, tdir)
	}
	return &VolumeCase{
		Source: source,
		To:     target,
		File:   filepath.Join(tdir, fmt.Sprintf("%s-to-%s.nii.gz", source, target)),
	}
}

// ClassifyList handles a list of source surfaces, which is always case 4
// even when the list has a single entry.
func ClassifyList(sources []Space, target Space, tdir string) (Case, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: empty source space list", models.ErrConfiguration)
	}
	return scatterCase(sources, target, tdir), nil
}

func surfaceCase(source, target Space, tdir string, group bool) *SurfaceCase {
	c := &SurfaceCase{Source: source, To: target, Group: group}
	if target.IsNativeSurface() {
		c.Hemi = target.Hemisphere()
		c.File = filepath.Join(tdir, fmt.Sprintf("%s.%s-to-%s.mgz", c.Hemi, source, target.Layer()))
	} else {
		c.Hemi = source.Hemisphere()
		c.File = filepath.Join(tdir, fmt.Sprintf("%s.%s-to-%s.mgz", c.Hemi, source.Layer(), target))
	}
	return c
}

func scatterCase(sources []Space, target Space, tdir string) *ScatterCase {
	c := &ScatterCase{Sources: append([]Space(nil), sources...), To: target}
	for _, s := range sources {
		c.Paths = append(c.Paths, filepath.Join(tdir,
			fmt.Sprintf("%s.%s-to-%s.mgz", s.Hemisphere(), target, s.Layer())))
	}
	return c
}

// WithTransformFile replaces the transform path of a classified case. A
// scatter case over several surfaces cannot take a single override.
func WithTransformFile(c Case, path string) (Case, error) {
	switch c := c.(type) {
	case *VolumeCase:
		cp := *c
		cp.File = path
		return &cp, nil
	case *SurfaceCase:
		cp := *c
		cp.File = path
		return &cp, nil
	case *ScatterCase:
		if len(c.Sources) != 1 {
			return nil, fmt.Errorf("%w: one transform file given for %d source surfaces",
				models.ErrConfiguration, len(c.Sources))
		}
		cp := *c
		cp.Paths = []string{path}
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: unknown case %T", models.ErrConfiguration, c)
}
