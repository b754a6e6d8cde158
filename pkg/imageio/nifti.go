package imageio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"nsdmap/internal/models"
)

// niftiHeader is the 348-byte NIfTI-1 header.
type niftiHeader struct {
	SizeofHdr      int32
	DataTypeUnused [10]byte
	DbName         [18]byte
	Extents        int32
	SessionError   int16
	Regular        byte
	DimInfo        byte
	Dim            [8]int16
	IntentP1       float32
	IntentP2       float32
	IntentP3       float32
	IntentCode     int16
	Datatype       int16
	Bitpix         int16
	SliceStart     int16
	Pixdim         [8]float32
	VoxOffset      float32
	SclSlope       float32
	SclInter       float32
	SliceEnd       int16
	SliceCode      byte
	XyztUnits      byte
	CalMax         float32
	CalMin         float32
	SliceDuration  float32
	Toffset        float32
	Glmax          int32
	Glmin          int32
	Descrip        [80]byte
	AuxFile        [24]byte
	QformCode      int16
	SformCode      int16
	QuaternB       float32
	QuaternC       float32
	QuaternD       float32
	QoffsetX       float32
	QoffsetY       float32
	QoffsetZ       float32
	SrowX          [4]float32
	SrowY          [4]float32
	SrowZ          [4]float32
	IntentName     [16]byte
	Magic          [4]byte
}

const (
	niftiHeaderSize = 348
	niftiVoxOffset  = 352
)

// NIfTI datatype codes.
const (
	dtUint8      = 2
	dtInt16      = 4
	dtInt32      = 8
	dtFloat32    = 16
	dtComplex64  = 32
	dtFloat64    = 64
	dtInt8       = 256
	dtUint16     = 512
	dtComplex128 = 1792
)

var niftiMagic = [4]byte{'n', '+', '1', 0}

// ReadNIfTI decodes a single-file NIfTI-1 image from r. The byte order is
// detected from the header size field.
func ReadNIfTI(r io.Reader) (*Image, error) {
	buf := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: reading nifti header: %v", models.ErrResource, err)
	}
	var order binary.ByteOrder = binary.LittleEndian
	if binary.LittleEndian.Uint32(buf) != niftiHeaderSize {
		if binary.BigEndian.Uint32(buf) != niftiHeaderSize {
			return nil, fmt.Errorf("%w: not a nifti-1 header", models.ErrResource)
		}
		order = binary.BigEndian
	}
	var h niftiHeader
	if err := binary.Read(bytes.NewReader(buf), order, &h); err != nil {
		return nil, fmt.Errorf("%w: decoding nifti header: %v", models.ErrResource, err)
	}
	if h.Dim[0] < 1 || h.Dim[0] > 7 {
		return nil, fmt.Errorf("%w: nifti dim[0]=%d is not in [1, 7]", models.ErrResource, h.Dim[0])
	}

	offset := int64(h.VoxOffset)
	if offset < niftiVoxOffset {
		offset = niftiVoxOffset
	}
	if _, err := io.CopyN(io.Discard, r, offset-niftiHeaderSize); err != nil {
		return nil, fmt.Errorf("%w: file has fewer bytes than vox_offset requires", models.ErrResource)
	}

	im := &Image{Dims: make([]int, h.Dim[0])}
	for i := range im.Dims {
		im.Dims[i] = max(int(h.Dim[i+1]), 1)
		if i < 3 {
			im.VoxelSize[i] = float64(h.Pixdim[i+1])
		}
	}

	n := im.Len()
	var err error
	switch h.Datatype {
	case dtComplex64, dtComplex128:
		im.Type = models.Complex128
		im.Complex, err = readComplex(r, order, n, h.Datatype == dtComplex128)
	default:
		im.Data, im.Type, err = readReal(r, order, n, h.Datatype)
	}
	if err != nil {
		return nil, err
	}

	if h.SclSlope != 0 && !(h.SclSlope == 1 && h.SclInter == 0) && im.Data != nil {
		m, b := float64(h.SclSlope), float64(h.SclInter)
		for i, v := range im.Data {
			im.Data[i] = m*v + b
		}
		im.Type = models.Float64
	}
	return im, nil
}

func readReal(r io.Reader, order binary.ByteOrder, n int, datatype int16) ([]float64, models.DataType, error) {
	out := make([]float64, n)
	var typ models.DataType
	var err error
	switch datatype {
	case dtUint8:
		v := make([]uint8, n)
		err = binary.Read(r, order, v)
		for i := range v {
			out[i] = float64(v[i])
		}
		typ = models.Uint8
	case dtInt8:
		v := make([]int8, n)
		err = binary.Read(r, order, v)
		for i := range v {
			out[i] = float64(v[i])
		}
		typ = models.Int16
	case dtInt16:
		v := make([]int16, n)
		err = binary.Read(r, order, v)
		for i := range v {
			out[i] = float64(v[i])
		}
		typ = models.Int16
	case dtUint16:
		v := make([]uint16, n)
		err = binary.Read(r, order, v)
		for i := range v {
			out[i] = float64(v[i])
		}
		typ = models.Int32
	case dtInt32:
		v := make([]int32, n)
		err = binary.Read(r, order, v)
		for i := range v {
			out[i] = float64(v[i])
		}
		typ = models.Int32
	case dtFloat32:
		v := make([]float32, n)
		err = binary.Read(r, order, v)
		for i := range v {
			out[i] = float64(v[i])
		}
		typ = models.Float32
	case dtFloat64:
		err = binary.Read(r, order, out)
		typ = models.Float64
	default:
		return nil, 0, fmt.Errorf("%w: unsupported nifti datatype %d", models.ErrResource, datatype)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading nifti data: %v", models.ErrResource, err)
	}
	return out, typ, nil
}

func readComplex(r io.Reader, order binary.ByteOrder, n int, double bool) ([]complex128, error) {
	out := make([]complex128, n)
	var err error
	if double {
		v := make([]float64, 2*n)
		err = binary.Read(r, order, v)
		for i := range out {
			out[i] = complex(v[2*i], v[2*i+1])
		}
	} else {
		v := make([]float32, 2*n)
		err = binary.Read(r, order, v)
		for i := range out {
			out[i] = complex(float64(v[2*i]), float64(v[2*i+1]))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading nifti data: %v", models.ErrResource, err)
	}
	return out, nil
}

// volumeAffine returns the diagonal voxel-to-world rows used for both sform
// and qform: scale by the voxel size and shift the origin voxel to 0.
func volumeAffine(voxelSize float64, origin [3]float64) [3][4]float32 {
	var rows [3][4]float32
	for i := 0; i < 3; i++ {
		rows[i][i] = float32(voxelSize)
		rows[i][3] = float32(-origin[i] * voxelSize)
	}
	return rows
}

// WriteNIfTI encodes a 3D or 4D image (grid x frames) as little-endian
// NIfTI-1 with a diagonal affine.
func WriteNIfTI(w io.Writer, grid [3]int, frames int, data []float64, complexData []complex128, opts VolumeOptions) error {
	voxelSize := opts.VoxelSize
	if voxelSize == 0 {
		voxelSize = 1
	}
	origin := [3]float64{}
	if opts.Origin != nil {
		origin = *opts.Origin
	} else {
		for i := range origin {
			origin[i] = (1+float64(grid[i]))/2 - 1
		}
	}

	h := niftiHeader{
		SizeofHdr: niftiHeaderSize,
		Regular:   'r',
		VoxOffset: niftiVoxOffset,
		SclSlope:  1,
		QformCode: 1,
		SformCode: 1,
		XyztUnits: 2, // mm
		Magic:     niftiMagic,
	}
	h.Dim[0] = 3
	if frames > 1 {
		h.Dim[0] = 4
	}
	for i := 0; i < 3; i++ {
		h.Dim[i+1] = int16(grid[i])
		h.Pixdim[i+1] = float32(voxelSize)
	}
	h.Dim[4] = int16(frames)
	for i := 5; i < 8; i++ {
		h.Dim[i] = 1
	}
	h.Pixdim[0] = 1
	h.Pixdim[4] = 1

	rows := volumeAffine(voxelSize, origin)
	h.SrowX, h.SrowY, h.SrowZ = rows[0], rows[1], rows[2]
	h.QoffsetX, h.QoffsetY, h.QoffsetZ = rows[0][3], rows[1][3], rows[2][3]

	typ := opts.Type
	if complexData != nil {
		typ = models.Complex128
	}
	switch typ {
	case models.Uint8:
		h.Datatype, h.Bitpix = dtUint8, 8
	case models.Int16:
		h.Datatype, h.Bitpix = dtInt16, 16
	case models.Int32:
		h.Datatype, h.Bitpix = dtInt32, 32
	case models.Float32:
		h.Datatype, h.Bitpix = dtFloat32, 32
	case models.Complex128:
		h.Datatype, h.Bitpix = dtComplex128, 128
	default:
		h.Datatype, h.Bitpix = dtFloat64, 64
	}

	order := binary.LittleEndian
	if err := binary.Write(w, order, &h); err != nil {
		return err
	}
	if _, err := w.Write(make([]byte, niftiVoxOffset-niftiHeaderSize)); err != nil {
		return err
	}

	n := grid[0] * grid[1] * grid[2] * frames
	if complexData != nil {
		v := make([]float64, 2*n)
		for i := 0; i < n; i++ {
			v[2*i], v[2*i+1] = real(complexData[i]), imag(complexData[i])
		}
		return binary.Write(w, order, v)
	}
	return writeReal(w, order, data[:n], typ)
}

func writeReal(w io.Writer, order binary.ByteOrder, data []float64, typ models.DataType) error {
	switch typ {
	case models.Uint8:
		v := make([]uint8, len(data))
		for i, x := range data {
			v[i] = uint8(models.Uint8.Cast(x))
		}
		return binary.Write(w, order, v)
	case models.Int16:
		v := make([]int16, len(data))
		for i, x := range data {
			v[i] = int16(models.Int16.Cast(x))
		}
		return binary.Write(w, order, v)
	case models.Int32:
		v := make([]int32, len(data))
		for i, x := range data {
			v[i] = int32(models.Int32.Cast(x))
		}
		return binary.Write(w, order, v)
	case models.Float32:
		v := make([]float32, len(data))
		for i, x := range data {
			v[i] = float32(x)
		}
		return binary.Write(w, order, v)
	}
	return binary.Write(w, order, data)
}

// flipX reverses the first axis of every 3D frame in place.
func flipX(grid [3]int, frames int, data []float64, complexData []complex128) {
	nx := grid[0]
	rows := grid[1] * grid[2] * frames
	for r := 0; r < rows; r++ {
		base := r * nx
		for i, j := base, base+nx-1; i < j; i, j = i+1, j-1 {
			if complexData != nil {
				complexData[i], complexData[j] = complexData[j], complexData[i]
			} else {
				data[i], data[j] = data[j], data[i]
			}
		}
	}
}
