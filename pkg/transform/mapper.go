package transform

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"nsdmap/internal/models"
	"nsdmap/pkg/config"
	"nsdmap/pkg/imageio"
	"nsdmap/pkg/interpolation"
	"nsdmap/pkg/logging"
	"nsdmap/pkg/scatter"
	"nsdmap/pkg/space"
)

// mniOrigin is the 0-based voxel at world (0,0,0) in the x-flipped MNI grid.
var mniOrigin = [3]float64{183 - 91 - 1, 127 - 1, 73 - 1}

// Request describes one mapping call. Zero values fall back to the
// Mapper's configuration.
type Request struct {
	// Subject is the subject index (1-8); 0 uses the configured subject
	Subject int

	// Source is the space the data lives in. Ignored when SourceList is set.
	Source space.Space

	// SourceList names several native surfaces whose data is merged into
	// one volume. A list always selects the surface-to-volume case, even
	// with a single entry.
	SourceList []space.Space

	// Target is the space to map into
	Target space.Space

	// Data is the payload to map
	Data Source

	// InterpType is nearest, linear, cubic, wta or surfacewta. It is
	// ignored, and not validated, for surface-to-fsaverage mapping.
	InterpType string

	// BadValue replaces every output location without a valid source;
	// nil uses the configured value
	BadValue *float64

	// OutputClass casts the result; empty keeps the source class. Complex
	// data only accepts complex128.
	OutputClass string

	// OutputFile is written when non-empty: .nii/.nii.gz for volumes,
	// .mgh/.mgz (named lh.* or rh.*) for surfaces
	OutputFile string

	// FSDir is the FreeSurfer subject directory supplying the surface
	// geometry header; required for surface output files
	FSDir string

	// TransformFile overrides the transform path derived from the spaces
	TransformFile string
}

// Result is the mapped data. Volumes (one per dataset) is set for volume
// targets, Surface (vertices x datasets) for surface targets, and Complex
// for complex volume data.
type Result struct {
	Case      space.Case
	Volumes   models.Stack
	Complex   *models.ComplexVolume
	Surface   *mat.Dense
	Type      models.DataType
	VoxelSize float64
}

// Mapper runs mapping requests. It holds no state between calls besides
// its configuration and collaborators, so one Mapper may serve many
// requests.
type Mapper struct {
	cfg    *config.Config
	reader Reader
	writer Writer
	logger logging.Logger
}

// NewMapper creates a mapper. A nil cfg uses config.DefaultConfig; nil
// reader or writer use the local filesystem.
func NewMapper(cfg *config.Config, r Reader, w Writer) *Mapper {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if r == nil {
		r = imageio.Files{}
	}
	if w == nil {
		w = imageio.Files{}
	}
	return &Mapper{cfg: cfg, reader: r, writer: w, logger: logging.Default()}
}

// SetLogger redirects data warnings and progress messages, including those
// of the default filesystem reader.
func (m *Mapper) SetLogger(l logging.Logger) {
	if l == nil {
		l = logging.Discard
	}
	m.logger = l
	if fs, ok := m.reader.(imageio.Files); ok {
		fs.Logger = l
		m.reader = fs
	}
	if fs, ok := m.writer.(imageio.Files); ok {
		fs.Logger = l
		m.writer = fs
	}
}

// plan is a validated request.
type plan struct {
	c          space.Case
	mode       interpolation.Mode
	labelVote  bool
	badValue   float64
	outClass   *models.DataType
	outputFile string
	fsdir      string
}

func (m *Mapper) prepare(req *Request) (*plan, error) {
	p := &plan{outputFile: req.OutputFile, fsdir: req.FSDir}

	p.badValue = m.cfg.Mapping.BadValue
	if req.BadValue != nil {
		p.badValue = *req.BadValue
	}

	class := req.OutputClass
	if class == "" {
		class = m.cfg.Mapping.OutputClass
	}
	if class != "" {
		t, err := models.ParseDataType(class)
		if err != nil {
			return nil, err
		}
		p.outClass = &t
	}

	subject := req.Subject
	if subject == 0 {
		subject = m.cfg.Data.Subject
	}
	tdir := m.cfg.TransformDir(subject)
	if req.SourceList != nil {
		c, err := space.ClassifyList(req.SourceList, req.Target, tdir)
		if err != nil {
			return nil, err
		}
		p.c = c
	} else {
		p.c = space.Classify(req.Source, req.Target, tdir)
	}
	if req.TransformFile != "" {
		c, err := space.WithTransformFile(p.c, req.TransformFile)
		if err != nil {
			return nil, err
		}
		p.c = c
	}

	// index lookup has no kernel, so any interpolation type is accepted
	if p.c.Kind() != space.SurfaceToGroup {
		interp := req.InterpType
		if interp == "" {
			interp = m.cfg.Mapping.InterpType
		}
		if strings.EqualFold(strings.TrimSpace(interp), "surfacewta") {
			p.mode, p.labelVote = interpolation.WTA, true
		} else {
			mode, err := interpolation.ParseMode(interp)
			if err != nil {
				return nil, err
			}
			p.mode = mode
		}
	}

	if p.c.Kind() == space.SurfaceToVolume {
		if g, ok := space.TargetGeometry(req.Target); !ok || g.Res == 0 {
			return nil, fmt.Errorf("%w: surfaces cannot be mapped into %s", models.ErrConfiguration, req.Target)
		}
	}
	if p.outputFile != "" && req.Target.IsSurface() {
		if _, err := imageio.Hemisphere(p.outputFile); err != nil {
			return nil, err
		}
		if p.fsdir == "" {
			return nil, fmt.Errorf("%w: a surface directory is required to write %s", models.ErrConfiguration, p.outputFile)
		}
	}
	return p, nil
}

// Map classifies the request, loads the transform and source data, maps
// every dataset and writes the output file if one was asked for. Either the
// complete result is returned or an error, never a partial result.
func (m *Mapper) Map(req *Request) (*Result, error) {
	p, err := m.prepare(req)
	if err != nil {
		return nil, err
	}
	tlog := logging.NewTimeLogFor(m.logger)

	field, err := LoadField(p.c, m.reader)
	if err != nil {
		return nil, err
	}
	rows, cols := field.Values.Dims()
	m.logger.Debugf("loaded %s transform: %d x %d", p.c.Kind(), rows, cols)
	kind := p.c.Kind()
	src, err := Normalize(req.Data, kind == space.SurfaceToGroup || kind == space.SurfaceToVolume, m.reader)
	if err != nil {
		return nil, err
	}

	res, err := m.apply(field, src, p)
	if err != nil {
		return nil, err
	}
	tlog.Infof("mapped %d dataset(s) %s", src.Datasets(), kind)

	if p.outputFile != "" {
		if err := m.write(res, p); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// apply maps loaded data with a loaded field. NaN results are replaced by
// the bad value after all interpolation and voting, then cast to the
// output class.
func (m *Mapper) apply(field *Field, src *Normalized, p *plan) (*Result, error) {
	c := field.Case
	res := &Result{Case: c, Type: src.Type}
	if p.outClass != nil {
		res.Type = *p.outClass
	}
	if g, ok := space.TargetGeometry(c.Target()); ok {
		res.VoxelSize = g.VoxelSize
	}

	var err error
	switch c.Kind() {
	case space.VolumeToVolume:
		err = m.toVolume(field, src, p, res)
	case space.VolumeToSurface:
		err = m.toSurface(field, src, p, res)
	case space.SurfaceToGroup:
		err = m.lookup(field, src, res)
	case space.SurfaceToVolume:
		err = m.scatter(field, src, p, res)
	default:
		err = fmt.Errorf("%w: unknown case %v", models.ErrConfiguration, c.Kind())
	}
	if err != nil {
		return nil, err
	}

	for _, v := range res.Volumes {
		fillNaN(v.Data, p.badValue)
		res.Type.CastAll(v.Data)
	}
	if res.Surface != nil {
		raw := res.Surface.RawMatrix()
		fillNaN(raw.Data, p.badValue)
		res.Type.CastAll(raw.Data)
	}
	if res.Complex != nil {
		for i, z := range res.Complex.Data {
			if math.IsNaN(real(z)) || math.IsNaN(imag(z)) {
				res.Complex.Data[i] = complex(p.badValue, 0)
			}
		}
	}
	return res, nil
}

func fillNaN(data []float64, bad float64) {
	for i, v := range data {
		if math.IsNaN(v) {
			data[i] = bad
		}
	}
}

func (m *Mapper) interpOptions() *interpolation.Options {
	return &interpolation.Options{LabelWarnLimit: m.cfg.Mapping.LabelWarnLimit, Logger: m.logger}
}

func (m *Mapper) toVolume(field *Field, src *Normalized, p *plan, res *Result) error {
	coords, err := field.Coords()
	if err != nil {
		return err
	}
	if src.Complex != nil {
		if p.outClass != nil && *p.outClass != models.Complex128 {
			return fmt.Errorf("%w: complex data cannot be written as %s", models.ErrConfiguration, *p.outClass)
		}
		vals, err := interpolation.InterpolateComplex(src.Complex, coords, p.mode, m.interpOptions())
		if err != nil {
			return err
		}
		res.Complex = &models.ComplexVolume{Data: vals, Dims: field.Grid, VoxelSize: res.VoxelSize}
		res.Type = models.Complex128
		return nil
	}
	for i, vol := range src.Volumes {
		vals, err := interpolation.Interpolate(vol, coords, p.mode, m.interpOptions())
		if err != nil {
			return fmt.Errorf("volume %d: %w", i, err)
		}
		out := &models.Volume{Data: vals, Dims: field.Grid, VoxelSize: res.VoxelSize}
		res.Volumes = append(res.Volumes, out)
		if len(src.Volumes) > 1 {
			m.logger.Debugf("mapped volume %d of %d", i+1, len(src.Volumes))
		}
	}
	return nil
}

func (m *Mapper) toSurface(field *Field, src *Normalized, p *plan, res *Result) error {
	if src.Complex != nil {
		return fmt.Errorf("%w: complex data can only be mapped between volumes", models.ErrConfiguration)
	}
	coords, err := field.Coords()
	if err != nil {
		return err
	}
	out := mat.NewDense(coords.Len(), len(src.Volumes), nil)
	for d, vol := range src.Volumes {
		vals, err := interpolation.Interpolate(vol, coords, p.mode, m.interpOptions())
		if err != nil {
			return fmt.Errorf("volume %d: %w", d, err)
		}
		out.SetCol(d, vals)
	}
	res.Surface = out
	return nil
}

// lookup copies source vertex rows through the index map; the
// interpolation mode plays no part.
func (m *Mapper) lookup(field *Field, src *Normalized, res *Result) error {
	idx, err := field.Indices()
	if err != nil {
		return err
	}
	rows, cols := src.Surface.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for i, k := range idx {
		if k >= rows {
			return fmt.Errorf("%w: index map refers to vertex %d of %d", models.ErrData, k+1, rows)
		}
		for d := 0; d < cols; d++ {
			if k < 0 {
				out.Set(i, d, math.NaN())
				continue
			}
			out.Set(i, d, src.Surface.At(k, d))
		}
	}
	res.Surface = out
	return nil
}

func (m *Mapper) scatter(field *Field, src *Normalized, p *plan, res *Result) error {
	coords, err := field.Coords()
	if err != nil {
		return err
	}
	g, _ := space.TargetGeometry(res.Case.Target())
	policy, err := scatter.ParseDivisorPolicy(m.cfg.Mapping.DivisorPolicy)
	if err != nil {
		return err
	}
	mode := scatter.WeightedAverage
	if p.labelVote {
		mode = scatter.LabelVote
	}
	out, err := scatter.Map(src.Surface, coords, g.Res, mode, &scatter.Options{
		Fill:    p.badValue,
		Caution: m.cfg.Mapping.DivisorCaution,
		Policy:  policy,
		Logger:  m.logger,
	})
	if err != nil {
		return err
	}
	for _, v := range out.Volumes {
		v.VoxelSize = g.VoxelSize
	}
	res.Volumes = out.Volumes
	return nil
}

func (m *Mapper) write(res *Result, p *plan) error {
	if res.Surface != nil {
		return m.writer.WriteSurface(p.outputFile, res.Surface, p.fsdir)
	}
	opts := imageio.VolumeOptions{VoxelSize: res.VoxelSize, Type: res.Type}
	if res.Case.Target() == space.MNI {
		origin := mniOrigin
		opts.Origin = &origin
		opts.FlipX = true
	}
	if res.Complex != nil {
		return m.writer.WriteComplexVolume(p.outputFile, res.Complex, opts)
	}
	return m.writer.WriteVolume(p.outputFile, res.Volumes, opts)
}
