package visualization

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"nsdmap/internal/models"
)

func patternVolume(dims [3]int) *models.Volume {
	v := models.NewVolume(dims)
	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				v.Set(x, y, z, float64(x+10*y+100*z))
			}
		}
	}
	return v
}

// TestExtractSlice verifies slice orientation and bounds checks
func TestExtractSlice(t *testing.T) {
	viewer := NewViewer(patternVolume([3]int{4, 3, 2}))

	slice, err := viewer.ExtractSlice("z", 1)
	if err != nil {
		t.Fatalf("Failed to extract Z slice: %v", err)
	}
	if r, c := slice.Dims(); r != 4 || c != 3 {
		t.Fatalf("Expected Z slice 4x3, got %dx%d", r, c)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			if want := float64(i + 10*j + 100); slice.At(i, j) != want {
				t.Errorf("Z slice (%d,%d) = %f, want %f", i, j, slice.At(i, j), want)
			}
		}
	}

	sliceX, err := viewer.ExtractSlice("X", 2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if r, c := sliceX.Dims(); r != 3 || c != 2 {
		t.Errorf("Expected X slice 3x2, got %dx%d", r, c)
	}
	if got := sliceX.At(1, 1); got != 112 {
		t.Errorf("X slice (1,1) = %f, want 112", got)
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", 2); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
}

// TestMosaic verifies tile placement, borders and unused tiles
func TestMosaic(t *testing.T) {
	vol := models.NewVolume([3]int{2, 2, 5})
	for z := 0; z < 5; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				vol.Set(x, y, z, float64(z+1))
			}
		}
	}

	m, err := NewViewer(vol).Mosaic("z")
	if err != nil {
		t.Fatalf("Mosaic failed: %v", err)
	}
	// 5 slices: 2 rows x 3 columns of 3x3 tiles
	if r, c := m.Dims(); r != 6 || c != 9 {
		t.Fatalf("Expected 6x9 mosaic, got %dx%d", r, c)
	}

	tests := []struct {
		i, j int
		want float64
	}{
		{0, 0, 1}, // slice 0
		{2, 0, 5}, // bottom border
		{0, 2, 5}, // right border
		{3, 0, 2}, // slice 1 fills down the first column
		{0, 3, 3}, // slice 2 starts the second column
		{4, 4, 4}, // slice 3
		{1, 6, 5}, // slice 4
		{3, 6, 0}, // unused tile
		{5, 8, 0},
	}
	for _, tc := range tests {
		if got := m.At(tc.i, tc.j); got != tc.want {
			t.Errorf("mosaic (%d,%d) = %f, want %f", tc.i, tc.j, got, tc.want)
		}
	}
}

func TestMosaicIgnoresNaNForBorder(t *testing.T) {
	vol := models.NewVolume([3]int{1, 1, 1})
	vol.Data[0] = 3
	if got := nanMax([]float64{math.NaN(), 3, -1}); got != 3 {
		t.Errorf("nanMax = %f, want 3", got)
	}
	if got := nanMax([]float64{math.NaN()}); !math.IsNaN(got) {
		t.Errorf("nanMax of all NaN = %f, want NaN", got)
	}
	m, err := NewViewer(vol).Mosaic("z")
	if err != nil {
		t.Fatalf("Mosaic failed: %v", err)
	}
	if r, c := m.Dims(); r != 2 || c != 2 {
		t.Fatalf("Expected 2x2 mosaic, got %dx%d", r, c)
	}
	if m.At(1, 1) != 3 {
		t.Errorf("border = %f, want 3", m.At(1, 1))
	}
}

func TestToImage(t *testing.T) {
	vol := models.NewVolume([3]int{1, 3, 1})
	vol.Data = []float64{0, math.NaN(), 2}
	slice, err := NewViewer(vol).ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("ExtractSlice failed: %v", err)
	}
	img := ToImage(slice)
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 1 {
		t.Fatalf("Expected 3x1 image, got %dx%d", b.Dx(), b.Dy())
	}
	want := []uint16{0, 0, 65535}
	for x, w := range want {
		if got := img.Gray16At(x, 0).Y; got != w {
			t.Errorf("pixel %d = %d, want %d", x, got, w)
		}
	}
}

func TestSaveMosaic(t *testing.T) {
	dir := t.TempDir()
	viewer := NewViewer(patternVolume([3]int{4, 3, 4}))

	filename := filepath.Join(dir, "preview", "mosaic.png")
	if err := viewer.SaveMosaic("z", filename); err != nil {
		t.Fatalf("SaveMosaic failed: %v", err)
	}
	f, err := os.Open(filename)
	if err != nil {
		t.Fatalf("Failed to open mosaic: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Failed to decode mosaic: %v", err)
	}
	// 4 slices of 4x3 plus borders in a 2x2 grid: 10 rows, 8 columns
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 10 {
		t.Errorf("Expected 8x10 image, got %dx%d", b.Dx(), b.Dy())
	}

	if err := viewer.SaveMosaic("z", filepath.Join(dir, "mosaic.bmp")); err == nil {
		t.Error("Expected error for unsupported format, got nil")
	}
	if _, err := os.Stat(filepath.Join(dir, "mosaic.bmp")); !os.IsNotExist(err) {
		t.Error("Unsupported format should not create a file")
	}
	if err := viewer.SaveMosaic("z", filepath.Join(dir, "mosaic.jpg")); err != nil {
		t.Errorf("SaveMosaic jpeg failed: %v", err)
	}
}
