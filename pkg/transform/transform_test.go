package transform

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"nsdmap/internal/models"
	"nsdmap/pkg/config"
	"nsdmap/pkg/imageio"
	"nsdmap/pkg/logging"
	"nsdmap/pkg/space"
)

// memFiles serves images from memory and records writes.
type memFiles struct {
	images   map[string]*imageio.Image
	volumes  map[string]models.Stack
	options  map[string]imageio.VolumeOptions
	surfaces map[string]*mat.Dense
}

func newMemFiles() *memFiles {
	return &memFiles{
		images:   map[string]*imageio.Image{},
		volumes:  map[string]models.Stack{},
		options:  map[string]imageio.VolumeOptions{},
		surfaces: map[string]*mat.Dense{},
	}
}

func (f *memFiles) ReadImage(path string) (*imageio.Image, error) {
	im, ok := f.images[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s does not exist", models.ErrResource, path)
	}
	return im, nil
}

func (f *memFiles) WriteVolume(path string, vols models.Stack, opts imageio.VolumeOptions) error {
	f.volumes[path], f.options[path] = vols, opts
	return nil
}

func (f *memFiles) WriteComplexVolume(path string, vol *models.ComplexVolume, opts imageio.VolumeOptions) error {
	re, _ := vol.Split()
	return f.WriteVolume(path, models.Stack{re}, opts)
}

func (f *memFiles) WriteSurface(path string, data mat.Matrix, fsdir string) error {
	f.surfaces[path] = mat.DenseCopyOf(data)
	return nil
}

const testLocation = "/nsd"

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Data.NSDLocation = testLocation
	return cfg
}

func tdir() string { return testConfig().TransformDir(1) }

func newTestMapper(files *memFiles) *Mapper {
	m := NewMapper(testConfig(), files, files)
	m.SetLogger(logging.Discard)
	return m
}

// coordField builds an X x Y x Z x 3 field of 1-based source coordinates.
func coordField(grid [3]int, at func(x, y, z int) [3]float64) *imageio.Image {
	n := grid[0] * grid[1] * grid[2]
	im := &imageio.Image{Data: make([]float64, 3*n), Dims: []int{grid[0], grid[1], grid[2], 3}}
	for z := 0; z < grid[2]; z++ {
		for y := 0; y < grid[1]; y++ {
			for x := 0; x < grid[0]; x++ {
				i := x + grid[0]*(y+grid[1]*z)
				c := at(x, y, z)
				for k := 0; k < 3; k++ {
					im.Data[i+n*k] = c[k]
				}
			}
		}
	}
	return im
}

// surfaceImage stores a V x D matrix the way MGH surfaces are stored.
func surfaceImage(m *mat.Dense) *imageio.Image {
	rows, cols := m.Dims()
	im := &imageio.Image{Data: make([]float64, rows*cols), Dims: []int{rows, 1, 1, cols}, Type: models.Float32}
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			im.Data[i+rows*j] = m.At(i, j)
		}
	}
	return im
}

func randomVolume(dims [3]int, seed float64) *models.Volume {
	v := models.NewVolume(dims)
	for i := range v.Data {
		v.Data[i] = math.Sin(seed*float64(i+1)) * 100
	}
	return v
}

func ptr(v float64) *float64 { return &v }

// TestStackedVolumes verifies a stack of 3 volumes maps like 3 single calls, in order
func TestStackedVolumes(t *testing.T) {
	files := newMemFiles()
	files.images[filepath.Join(tdir(), "func1pt8-to-anat1pt0.nii.gz")] = coordField([3]int{2, 3, 2},
		func(x, y, z int) [3]float64 { return [3]float64{float64(x) + 1.5, float64(y) + 1.25, float64(z) + 2} })

	src := [3]int{4, 4, 4}
	stack := models.Stack{randomVolume(src, 1), randomVolume(src, 2), randomVolume(src, 3)}
	m := newTestMapper(files)

	res, err := m.Map(&Request{Source: space.Func1pt8, Target: space.Anat1pt0, Data: VolumeData{Volumes: stack}})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if len(res.Volumes) != 3 {
		t.Fatalf("expected 3 output volumes, got %d", len(res.Volumes))
	}
	for d, vol := range stack {
		single, err := m.Map(&Request{Source: space.Func1pt8, Target: space.Anat1pt0, Data: Single(vol)})
		if err != nil {
			t.Fatalf("single Map failed: %v", err)
		}
		if single.Volumes[0].Dims != [3]int{2, 3, 2} {
			t.Errorf("unexpected grid %v", single.Volumes[0].Dims)
		}
		for i, v := range single.Volumes[0].Data {
			if res.Volumes[d].Data[i] != v {
				t.Fatalf("volume %d voxel %d: stacked %f, single %f", d, i, res.Volumes[d].Data[i], v)
			}
		}
	}
	if res.VoxelSize != 1.0 {
		t.Errorf("voxel size = %f, want 1", res.VoxelSize)
	}
}

// TestUndefinedVoxelsGetBadValue verifies the sentinel and out-of-range coordinates
func TestUndefinedVoxelsGetBadValue(t *testing.T) {
	files := newMemFiles()
	files.images[filepath.Join(tdir(), "anat0pt8-to-func1pt8.nii.gz")] = coordField([3]int{3, 1, 1},
		func(x, y, z int) [3]float64 {
			switch x {
			case 0:
				return [3]float64{2, 2, 2}
			case 1:
				return [3]float64{Undefined, Undefined, Undefined}
			}
			return [3]float64{0.5, 1, 1}
		})
	vol := models.NewVolume([3]int{3, 3, 3})
	vol.Set(1, 1, 1, 42)

	for _, mode := range []string{"nearest", "linear", "cubic", "wta"} {
		res, err := newTestMapper(files).Map(&Request{
			Source: space.Anat0pt8, Target: space.Func1pt8, Data: Single(vol),
			InterpType: mode, BadValue: ptr(-7),
		})
		if err != nil {
			t.Fatalf("%s: Map failed: %v", mode, err)
		}
		got := res.Volumes[0].Data
		if math.Abs(got[0]-42) > 1e-9 {
			t.Errorf("%s: defined voxel = %f, want 42", mode, got[0])
		}
		if got[1] != -7 || got[2] != -7 {
			t.Errorf("%s: undefined voxels = %v, want -7", mode, got[1:])
		}
	}
}

func TestVolumeToSurface(t *testing.T) {
	files := newMemFiles()
	coords := mat.NewDense(3, 3, []float64{
		1, 1, 1,
		2, 1, 1,
		1.5, 1, 1,
	})
	files.images[filepath.Join(tdir(), "lh.func1pt0-to-pial.mgz")] = surfaceImage(coords)

	a := models.NewVolume([3]int{2, 2, 2})
	a.Set(1, 0, 0, 10)
	b := models.NewVolume([3]int{2, 2, 2})
	b.Set(0, 0, 0, 4)

	res, err := newTestMapper(files).Map(&Request{
		Source: space.Func1pt0, Target: "lh.pial",
		Data: VolumeData{Volumes: models.Stack{a, b}}, InterpType: "linear",
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	want := mat.NewDense(3, 2, []float64{
		0, 4,
		10, 0,
		5, 2,
	})
	if !mat.EqualApprox(res.Surface, want, 1e-12) {
		t.Errorf("surface result\n%v\nwant\n%v", mat.Formatted(res.Surface), mat.Formatted(want))
	}
}

// TestGroupRoundTrip maps native -> fsaverage -> native through inverse index tables
func TestGroupRoundTrip(t *testing.T) {
	files := newMemFiles()
	perm := []float64{3, 1, 4, 2}
	inv := make([]float64, len(perm))
	for i, p := range perm {
		inv[int(p)-1] = float64(i + 1)
	}
	files.images[filepath.Join(tdir(), "lh.white-to-fsaverage.mgz")] = surfaceImage(mat.NewDense(4, 1, perm))
	files.images[filepath.Join(tdir(), "lh.fsaverage-to-white.mgz")] = surfaceImage(mat.NewDense(4, 1, inv))

	data := mat.NewDense(4, 2, []float64{
		1, -1,
		2, -2,
		3, -3,
		4, -4,
	})
	m := newTestMapper(files)
	// the interpolation type must not matter here
	group, err := m.Map(&Request{Source: "lh.white", Target: space.FSAverage, Data: SurfaceData{Values: data}, InterpType: "cubic"})
	if err != nil {
		t.Fatalf("native to fsaverage failed: %v", err)
	}
	if group.Case.Kind() != space.SurfaceToGroup {
		t.Fatalf("unexpected case %v", group.Case.Kind())
	}
	if got := group.Surface.At(0, 0); got != 3 {
		t.Errorf("fsaverage vertex 0 = %f, want 3", got)
	}
	back, err := m.Map(&Request{Source: space.FSAverage, Target: "lh.white", Data: SurfaceData{Values: group.Surface}})
	if err != nil {
		t.Fatalf("fsaverage to native failed: %v", err)
	}
	if !mat.Equal(back.Surface, data) {
		t.Errorf("round trip\n%v\nwant\n%v", mat.Formatted(back.Surface), mat.Formatted(data))
	}
}

func TestGroupIndexOutOfRange(t *testing.T) {
	files := newMemFiles()
	files.images[filepath.Join(tdir(), "rh.white-to-fsaverage.mgz")] = surfaceImage(mat.NewDense(2, 1, []float64{1, 5}))
	_, err := newTestMapper(files).Map(&Request{
		Source: "rh.white", Target: space.FSAverage,
		Data: SurfaceData{Values: mat.NewDense(2, 1, []float64{1, 2})},
	})
	if !errors.Is(err, models.ErrData) {
		t.Errorf("expected data error, got %v", err)
	}
}

// TestScatterTwoHemispheres stacks the fields and data of both hemispheres in list order
func TestScatterTwoHemispheres(t *testing.T) {
	files := newMemFiles()
	files.images[filepath.Join(tdir(), "lh.anat1pt0-to-white.mgz")] = surfaceImage(mat.NewDense(1, 3, []float64{11, 11, 11}))
	files.images[filepath.Join(tdir(), "rh.anat1pt0-to-white.mgz")] = surfaceImage(mat.NewDense(1, 3, []float64{21, 21, 21}))
	files.images["/data/rh.values.mgz"] = surfaceImage(mat.NewDense(1, 1, []float64{7}))

	res, err := newTestMapper(files).Map(&Request{
		SourceList: []space.Space{"lh.white", "rh.white"},
		Target:     space.Anat1pt0,
		Data:       List{SurfaceData{Values: mat.NewDense(1, 1, []float64{5})}, File("/data/rh.values.mgz")},
		BadValue:   ptr(-1),
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if len(res.Volumes) != 1 {
		t.Fatalf("expected 1 volume, got %d", len(res.Volumes))
	}
	vol := res.Volumes[0]
	if vol.Dims != [3]int{256, 256, 256} {
		t.Fatalf("unexpected grid %v", vol.Dims)
	}
	if vol.At(10, 10, 10) != 5 || vol.At(20, 20, 20) != 7 {
		t.Errorf("vertex voxels = %f, %f, want 5, 7", vol.At(10, 10, 10), vol.At(20, 20, 20))
	}
	if vol.At(0, 0, 0) != -1 {
		t.Errorf("empty voxel = %f, want -1", vol.At(0, 0, 0))
	}
	// a list takes the class of its first entry
	if res.Type != models.Float64 {
		t.Errorf("output class = %v, want the first entry's float64", res.Type)
	}
}

// TestScatterModeSelection verifies only surfacewta switches the scatter to a label vote
func TestScatterModeSelection(t *testing.T) {
	files := newMemFiles()
	// two vertices share voxel (10,10,10); the on-grid one weighs 24, the other 10
	files.images[filepath.Join(tdir(), "lh.anat1pt0-to-white.mgz")] = surfaceImage(mat.NewDense(2, 3, []float64{
		11, 11, 11,
		11.5, 11, 11,
	}))
	labels := mat.NewDense(2, 1, []float64{2, 7})

	tests := []struct {
		interp string
		shared float64
	}{
		{"", (24*2 + 10*7) / 34.0},
		{"wta", (24*2 + 10*7) / 34.0},
		{"surfacewta", 2},
	}
	m := newTestMapper(files)
	for _, tc := range tests {
		res, err := m.Map(&Request{
			SourceList: []space.Space{"lh.white"},
			Target:     space.Anat1pt0,
			Data:       SurfaceData{Values: labels},
			InterpType: tc.interp,
			BadValue:   ptr(-1),
		})
		if err != nil {
			t.Fatalf("%q: Map failed: %v", tc.interp, err)
		}
		vol := res.Volumes[0]
		if got := vol.At(10, 10, 10); math.Abs(got-tc.shared) > 1e-12 {
			t.Errorf("%q: shared voxel = %f, want %f", tc.interp, got, tc.shared)
		}
		if got := vol.At(11, 10, 10); got != 7 {
			t.Errorf("%q: single vertex voxel = %f, want 7", tc.interp, got)
		}
		if got := vol.At(0, 0, 0); got != -1 {
			t.Errorf("%q: empty voxel = %f, want -1", tc.interp, got)
		}
	}
}

func TestVolumeToSurfaceWTA(t *testing.T) {
	files := newMemFiles()
	files.images[filepath.Join(tdir(), "lh.func1pt0-to-white.mgz")] = surfaceImage(mat.NewDense(3, 3, []float64{
		1, 1, 1,
		1.6, 1, 1,
		Undefined, Undefined, Undefined,
	}))
	vol := models.NewVolume([3]int{2, 1, 1})
	vol.Data = []float64{3, 8}

	res, err := newTestMapper(files).Map(&Request{
		Source: space.Func1pt0, Target: "lh.white", Data: Single(vol),
		InterpType: "wta", BadValue: ptr(-5),
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	want := []float64{3, 8, -5}
	for i, w := range want {
		if got := res.Surface.At(i, 0); got != w {
			t.Errorf("vertex %d = %f, want %f", i, got, w)
		}
	}
}

// TestGroupIgnoresInterpType verifies index lookup accepts any interpolation name
func TestGroupIgnoresInterpType(t *testing.T) {
	files := newMemFiles()
	files.images[filepath.Join(tdir(), "lh.white-to-fsaverage.mgz")] = surfaceImage(mat.NewDense(2, 1, []float64{2, 1}))
	res, err := newTestMapper(files).Map(&Request{
		Source: "lh.white", Target: space.FSAverage,
		Data: SurfaceData{Values: mat.NewDense(2, 1, []float64{10, 20})}, InterpType: "spline",
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if res.Surface.At(0, 0) != 20 || res.Surface.At(1, 0) != 10 {
		t.Errorf("lookup gave %v", mat.Formatted(res.Surface))
	}
}

func TestComplexOutputClass(t *testing.T) {
	files := newMemFiles()
	files.images[filepath.Join(tdir(), "func1pt8-to-anat1pt0.nii.gz")] = coordField([3]int{1, 1, 1},
		func(x, y, z int) [3]float64 { return [3]float64{1, 1, 1} })
	data := ComplexData{Volume: &models.ComplexVolume{Data: []complex128{complex(1, 2)}, Dims: [3]int{1, 1, 1}}}
	m := newTestMapper(files)

	_, err := m.Map(&Request{Source: space.Func1pt8, Target: space.Anat1pt0, Data: data, InterpType: "nearest", OutputClass: "float32"})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error for a real output class, got %v", err)
	}
	res, err := m.Map(&Request{Source: space.Func1pt8, Target: space.Anat1pt0, Data: data, InterpType: "nearest", OutputClass: "complex128"})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if res.Type != models.Complex128 || res.Complex.Data[0] != complex(1, 2) {
		t.Errorf("complex result %v of %v", res.Complex.Data, res.Type)
	}
}

// TestMapperLogger verifies SetLogger reaches progress lines and the default file reader
func TestMapperLogger(t *testing.T) {
	files := newMemFiles()
	files.images[filepath.Join(tdir(), "func1pt8-to-anat1pt0.nii.gz")] = coordField([3]int{1, 1, 1},
		func(x, y, z int) [3]float64 { return [3]float64{1, 1, 1} })
	rec := &logging.Recorder{}
	m := NewMapper(testConfig(), files, files)
	m.SetLogger(rec)
	if _, err := m.Map(&Request{Source: space.Func1pt8, Target: space.Anat1pt0, Data: Single(models.NewVolume([3]int{1, 1, 1}))}); err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	var loaded, mapped bool
	for _, msg := range rec.Messages {
		loaded = loaded || strings.HasPrefix(msg, "loaded ")
		mapped = mapped || strings.HasPrefix(msg, "mapped 1 dataset(s)")
	}
	if !loaded || !mapped {
		t.Errorf("missing progress lines: %v", rec.Messages)
	}

	def := NewMapper(testConfig(), nil, nil)
	def.SetLogger(rec)
	if fs, ok := def.reader.(imageio.Files); !ok || fs.Logger != rec {
		t.Errorf("default reader logger not replaced: %#v", def.reader)
	}
}

func TestWriteMNI(t *testing.T) {
	files := newMemFiles()
	files.images[filepath.Join(tdir(), "func1pt8-to-MNI.nii.gz")] = coordField([3]int{2, 2, 2},
		func(x, y, z int) [3]float64 { return [3]float64{float64(x + 1), float64(y + 1), float64(z + 1)} })
	vol := models.NewVolume([3]int{2, 2, 2})
	for i := range vol.Data {
		vol.Data[i] = float64(i) + 0.7
	}

	out := "/out/mni.nii.gz"
	res, err := newTestMapper(files).Map(&Request{
		Source: space.Func1pt8, Target: space.MNI, Data: Single(vol),
		InterpType: "nearest", OutputClass: "int16", OutputFile: out,
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if res.Type != models.Int16 {
		t.Errorf("output class = %v, want int16", res.Type)
	}
	if got := res.Volumes[0].Data[3]; got != 3 {
		t.Errorf("cast voxel = %f, want 3", got)
	}
	opts, ok := files.options[out]
	if !ok {
		t.Fatalf("nothing written to %s", out)
	}
	if !opts.FlipX || opts.Origin == nil || *opts.Origin != [3]float64{91, 126, 72} {
		t.Errorf("MNI options = %+v, origin %v", opts, opts.Origin)
	}
	if opts.VoxelSize != 1 || opts.Type != models.Int16 {
		t.Errorf("unexpected write options %+v", opts)
	}
}

func TestSurfaceOutputNeedsDirectory(t *testing.T) {
	files := newMemFiles()
	files.images[filepath.Join(tdir(), "lh.func1pt0-to-white.mgz")] = surfaceImage(mat.NewDense(1, 3, []float64{1, 1, 1}))
	req := &Request{
		Source: space.Func1pt0, Target: "lh.white",
		Data: Single(models.NewVolume([3]int{1, 1, 1})), OutputFile: "/out/lh.result.mgz",
	}
	m := newTestMapper(files)
	if _, err := m.Map(req); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error without fsdir, got %v", err)
	}
	req.OutputFile = "/out/result.mgz"
	req.FSDir = "/fs"
	if _, err := m.Map(req); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error without hemisphere, got %v", err)
	}
	req.OutputFile = "/out/lh.result.mgz"
	if _, err := m.Map(req); err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if _, ok := files.surfaces[req.OutputFile]; !ok {
		t.Errorf("surface not written")
	}
}

func TestRequestErrors(t *testing.T) {
	vol := Single(models.NewVolume([3]int{2, 2, 2}))
	tests := []struct {
		name string
		req  *Request
		want error
	}{
		{"unknown interpolation", &Request{Source: space.Func1pt8, Target: space.Anat1pt0, Data: vol, InterpType: "spline"}, models.ErrConfiguration},
		{"unknown class", &Request{Source: space.Func1pt8, Target: space.Anat1pt0, Data: vol, OutputClass: "int8"}, models.ErrConfiguration},
		{"missing transform", &Request{Source: space.Func1pt8, Target: space.Anat1pt0, Data: vol}, models.ErrResource},
		{"no scatter grid", &Request{SourceList: []space.Space{"lh.white"}, Target: space.Func1pt8, Data: vol}, models.ErrConfiguration},
		{"empty list", &Request{SourceList: []space.Space{}, Target: space.Anat1pt0, Data: vol}, models.ErrConfiguration},
		{"override for two surfaces", &Request{SourceList: []space.Space{"lh.white", "rh.white"}, Target: space.Anat1pt0, Data: vol, TransformFile: "/x.mgz"}, models.ErrConfiguration},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestMapper(newMemFiles()).Map(tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTransformFileOverride(t *testing.T) {
	files := newMemFiles()
	files.images["/custom/field.nii"] = coordField([3]int{1, 1, 1},
		func(x, y, z int) [3]float64 { return [3]float64{2, 1, 1} })
	vol := models.NewVolume([3]int{2, 1, 1})
	vol.Data[1] = 9

	res, err := newTestMapper(files).Map(&Request{
		Source: space.Anat0pt5, Target: space.Anat1pt0, Data: Single(vol),
		InterpType: "nearest", TransformFile: "/custom/field.nii",
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if got := res.Volumes[0].Data[0]; got != 9 {
		t.Errorf("voxel = %f, want 9", got)
	}
}

func TestFieldConversions(t *testing.T) {
	f := &Field{Case: &space.SurfaceCase{}, Values: mat.NewDense(2, 3, []float64{
		1, 2, 3,
		Undefined, 5, 6,
	})}
	c, err := f.Coords()
	if err != nil {
		t.Fatalf("Coords failed: %v", err)
	}
	if x, y, z := c.At(0); x != 0 || y != 1 || z != 2 {
		t.Errorf("coordinate 0 = (%f, %f, %f), want (0, 1, 2)", x, y, z)
	}
	if x, _, _ := c.At(1); !math.IsNaN(x) {
		t.Errorf("sentinel became %f, want NaN", x)
	}
	if _, err := f.Indices(); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error for coordinates as indices, got %v", err)
	}

	g := &Field{Case: &space.SurfaceCase{Group: true}, Values: mat.NewDense(4, 1, []float64{1, 4, 0, 2.5})}
	idx, err := g.Indices()
	if err != nil {
		t.Fatalf("Indices failed: %v", err)
	}
	want := []int{0, 3, -1, -1}
	for i := range want {
		if idx[i] != want[i] {
			t.Errorf("index %d = %d, want %d", i, idx[i], want[i])
		}
	}
}

func TestNormalize(t *testing.T) {
	files := newMemFiles()
	files.images["/d/lh.a.mgz"] = surfaceImage(mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	files.images["/d/vol.nii"] = &imageio.Image{Data: make([]float64, 16), Dims: []int{2, 2, 2, 2}, Type: models.Int16}

	n, err := Normalize(List{File("/d/lh.a.mgz"), SurfaceData{Values: mat.NewDense(1, 2, []float64{5, 6})}}, true, files)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	want := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	if !mat.Equal(n.Surface, want) {
		t.Errorf("stacked list\n%v", mat.Formatted(n.Surface))
	}
	if n.Type != models.Float32 || n.Datasets() != 2 {
		t.Errorf("type %v, datasets %d", n.Type, n.Datasets())
	}

	n, err = Normalize(File("/d/vol.nii"), false, files)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(n.Volumes) != 2 || n.Type != models.Int16 {
		t.Errorf("volume file gave %d volumes of %v", len(n.Volumes), n.Type)
	}

	bad := []struct {
		name    string
		src     Source
		surface bool
		want    error
	}{
		{"volume as surface", Single(models.NewVolume([3]int{1, 1, 1})), true, models.ErrConfiguration},
		{"surface as volume", SurfaceData{Values: mat.NewDense(1, 1, nil)}, false, models.ErrConfiguration},
		{"list of volumes", List{File("/d/vol.nii")}, false, models.ErrConfiguration},
		{"mismatched datasets", List{File("/d/lh.a.mgz"), SurfaceData{Values: mat.NewDense(1, 3, nil)}}, true, models.ErrConfiguration},
		{"missing file", File("/d/none.mgz"), true, models.ErrResource},
		{"mixed grids", VolumeData{Volumes: models.Stack{models.NewVolume([3]int{1, 1, 1}), models.NewVolume([3]int{2, 1, 1})}}, false, models.ErrConfiguration},
	}
	for _, tc := range bad {
		if _, err := Normalize(tc.src, tc.surface, files); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}
