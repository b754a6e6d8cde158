package imageio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"gonum.org/v1/gonum/mat"

	"nsdmap/internal/models"
	"nsdmap/pkg/logging"
)

// Files reads and writes images on the local filesystem. Its zero value is
// ready to use.
type Files struct {
	// Logger receives read progress; nil means the package-level logger
	Logger logging.Logger
}

func (fs Files) logger() logging.Logger {
	if fs.Logger == nil {
		return logging.Default()
	}
	return fs.Logger
}

// ReadImage loads a .nii, .nii.gz, .mgh or .mgz file. Gzip compression is
// detected from the stream itself.
func (fs Files) ReadImage(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrResource, err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		fs.logger().Debugf("reading %s (%s)", path, humanize.Bytes(uint64(info.Size())))
	}

	r, closeFn, err := maybeGunzip(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrResource, path, err)
	}
	defer closeFn()

	var im *Image
	switch format(path) {
	case "nii":
		im, err = ReadNIfTI(r)
	case "mgh":
		im, err = ReadMGH(r)
	default:
		return nil, fmt.Errorf("%w: unrecognised image extension: %s", models.ErrConfiguration, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return im, nil
}

// format returns "nii" or "mgh" from the file name.
func format(path string) string {
	base := strings.ToLower(filepath.Base(path))
	base = strings.TrimSuffix(base, ".gz")
	switch {
	case strings.HasSuffix(base, ".nii"):
		return "nii"
	case strings.HasSuffix(base, ".mgh"), strings.HasSuffix(base, ".mgz"):
		return "mgh"
	}
	return ""
}

func compressed(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".mgz")
}

func maybeGunzip(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		return br, func() {}, nil
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, err
	}
	return zr, func() { zr.Close() }, nil
}

// create opens path for writing, wrapping it in gzip when the name asks
// for compression. The returned close function flushes both layers.
func create(path string) (io.Writer, func() error, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	bw := bufio.NewWriter(f)
	if !compressed(path) {
		return bw, func() error {
			if err := bw.Flush(); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}, nil
	}
	zw := gzip.NewWriter(bw)
	return zw, func() error {
		if err := zw.Close(); err != nil {
			f.Close()
			return err
		}
		if err := bw.Flush(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}

// WriteVolume writes a stack of volumes as a 3D (one volume) or 4D NIfTI.
// The caller's data is not modified by FlipX.
func (Files) WriteVolume(path string, vols models.Stack, opts VolumeOptions) error {
	if len(vols) == 0 {
		return fmt.Errorf("%w: nothing to write to %s", models.ErrConfiguration, path)
	}
	if format(path) != "nii" {
		return fmt.Errorf("%w: volume output must be .nii or .nii.gz: %s", models.ErrConfiguration, path)
	}
	grid := vols.Dims()
	n := grid[0] * grid[1] * grid[2]
	data := make([]float64, 0, n*len(vols))
	for _, v := range vols {
		if v.Dims != grid {
			return fmt.Errorf("%w: stack volumes have different grids", models.ErrConfiguration)
		}
		data = append(data, v.Data...)
	}
	if opts.FlipX {
		flipX(grid, len(vols), data, nil)
	}
	return writeNIfTIFile(path, grid, len(vols), data, nil, opts)
}

// WriteComplexVolume writes a complex volume as a complex128 NIfTI.
func (Files) WriteComplexVolume(path string, vol *models.ComplexVolume, opts VolumeOptions) error {
	data := append([]complex128(nil), vol.Data...)
	if opts.FlipX {
		flipX(vol.Dims, 1, nil, data)
	}
	return writeNIfTIFile(path, vol.Dims, 1, nil, data, opts)
}

func writeNIfTIFile(path string, grid [3]int, frames int, data []float64, complexData []complex128, opts VolumeOptions) error {
	w, closeFn, err := create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrResource, err)
	}
	if err := WriteNIfTI(w, grid, frames, data, complexData, opts); err != nil {
		closeFn()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return closeFn()
}

// Hemisphere infers "lh" or "rh" from a surface file name.
func Hemisphere(path string) (string, error) {
	base := filepath.Base(path)
	switch {
	case strings.Contains(base, "lh."):
		return "lh", nil
	case strings.Contains(base, "rh."):
		return "rh", nil
	}
	return "", fmt.Errorf("%w: surface output name must contain lh. or rh.: %s", models.ErrConfiguration, path)
}

// SurfaceTemplate finds the per-hemisphere MGH whose geometry header is
// reused for surface output.
func SurfaceTemplate(fsdir, hemi string) (string, error) {
	for _, name := range []string{hemi + ".w-g.pct.mgh", hemi + ".orig.avg.area.mgh"} {
		p := filepath.Join(fsdir, "surf", name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no surface template for %s under %s/surf", models.ErrResource, hemi, fsdir)
}

// WriteSurface writes V x D per-vertex data as MGH (or gzip-compressed
// .mgz), with geometry copied from the FreeSurfer subject in fsdir.
func (Files) WriteSurface(path string, data mat.Matrix, fsdir string) error {
	hemi, err := Hemisphere(path)
	if err != nil {
		return err
	}
	if fsdir == "" {
		return fmt.Errorf("%w: missing surface directory for %s", models.ErrConfiguration, path)
	}
	tpath, err := SurfaceTemplate(fsdir, hemi)
	if err != nil {
		return err
	}
	template, err := readTemplateHeader(tpath)
	if err != nil {
		return err
	}

	w, closeFn, err := create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrResource, err)
	}
	rows, cols := data.Dims()
	if err := WriteMGH(w, rows, cols, data.At, template); err != nil {
		closeFn()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return closeFn()
}

func readTemplateHeader(path string) (*mghHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrResource, err)
	}
	defer f.Close()
	r, closeFn, err := maybeGunzip(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrResource, path, err)
	}
	defer closeFn()
	return readMGHHeader(r)
}
