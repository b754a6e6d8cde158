package imageio

import (
	"encoding/binary"
	"fmt"
	"io"

	"nsdmap/internal/models"
)

// MGH element types.
const (
	mghUchar = 0
	mghInt   = 1
	mghFloat = 3
	mghShort = 4
)

// mghHeaderSize is the fixed offset of the data block.
const mghHeaderSize = 284

// mghHeader is the fixed part of an MGH header. Geometry is the
// direction-cosine/centre block that follows when GoodRAS is set.
type mghHeader struct {
	Version int32
	Width   int32
	Height  int32
	Depth   int32
	Frames  int32
	Type    int32
	Dof     int32
	GoodRAS int16
	// xsize ysize zsize, x_ras, y_ras, z_ras, c_ras
	Geometry [15]float32
}

// mghGeometrySize is the number of bytes of mghHeader.
const mghGeometrySize = 7*4 + 2 + 15*4

// ReadMGH decodes an (uncompressed) MGH stream. All MGH data is big-endian.
func ReadMGH(r io.Reader) (*Image, error) {
	h, err := readMGHHeader(r)
	if err != nil {
		return nil, err
	}
	if _, err := io.CopyN(io.Discard, r, mghHeaderSize-mghGeometrySize); err != nil {
		return nil, fmt.Errorf("%w: truncated mgh header", models.ErrResource)
	}

	im := &Image{Dims: []int{int(h.Width), int(h.Height), int(h.Depth), int(h.Frames)}}
	for i, d := range im.Dims {
		im.Dims[i] = max(d, 1)
	}
	if h.GoodRAS != 0 {
		im.VoxelSize = [3]float64{float64(h.Geometry[0]), float64(h.Geometry[1]), float64(h.Geometry[2])}
	}

	n := im.Len()
	var datatype int16
	switch h.Type {
	case mghUchar:
		datatype = dtUint8
	case mghInt:
		datatype = dtInt32
	case mghFloat:
		datatype = dtFloat32
	case mghShort:
		datatype = dtInt16
	default:
		return nil, fmt.Errorf("%w: unsupported mgh type %d", models.ErrResource, h.Type)
	}
	im.Data, im.Type, err = readReal(r, binary.BigEndian, n, datatype)
	if err != nil {
		return nil, err
	}
	return im, nil
}

func readMGHHeader(r io.Reader) (*mghHeader, error) {
	var h mghHeader
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: reading mgh header: %v", models.ErrResource, err)
	}
	if h.Version != 1 {
		return nil, fmt.Errorf("%w: unsupported mgh version %d", models.ErrResource, h.Version)
	}
	return &h, nil
}

// WriteMGH encodes a V x D surface array as float MGH with dims V x 1 x 1 x D,
// copying the geometry block from template (which may be nil).
func WriteMGH(w io.Writer, rows, cols int, at func(i, j int) float64, template *mghHeader) error {
	h := mghHeader{
		Version: 1,
		Width:   int32(rows),
		Height:  1,
		Depth:   1,
		Frames:  int32(cols),
		Type:    mghFloat,
	}
	if template != nil {
		h.GoodRAS = template.GoodRAS
		h.Geometry = template.Geometry
	}
	if err := binary.Write(w, binary.BigEndian, &h); err != nil {
		return err
	}
	if _, err := w.Write(make([]byte, mghHeaderSize-mghGeometrySize)); err != nil {
		return err
	}
	v := make([]float32, rows*cols)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			v[i+rows*j] = float32(at(i, j))
		}
	}
	return binary.Write(w, binary.BigEndian, v)
}
