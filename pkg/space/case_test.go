package space

import (
	"errors"
	"path/filepath"
	"testing"

	"nsdmap/internal/models"
)

// TestClassify verifies the case rules and transform file names
func TestClassify(t *testing.T) {
	tdir := "/nsd/transforms"
	testCases := []struct {
		source, target Space
		kind           Kind
		file           string
	}{
		{"func1pt8", "MNI", VolumeToVolume, "func1pt8-to-MNI.nii.gz"},
		{"anat0pt8", "func1pt0", VolumeToVolume, "anat0pt8-to-func1pt0.nii.gz"},
		{"MNI", "lh.pial", VolumeToSurface, "lh.MNI-to-pial.mgz"},
		{"func1pt8", "rh.layerB2", VolumeToSurface, "rh.func1pt8-to-layerB2.mgz"},
		{"lh.white", "fsaverage", SurfaceToGroup, "lh.white-to-fsaverage.mgz"},
		{"fsaverage", "rh.white", SurfaceToGroup, "rh.fsaverage-to-white.mgz"},
		{"lh.layerB1", "anat0pt8", SurfaceToVolume, "lh.anat0pt8-to-layerB1.mgz"},
	}

	for _, tc := range testCases {
		c := Classify(tc.source, tc.target, tdir)
		if c.Kind() != tc.kind {
			t.Errorf("Classify(%s, %s) = %v, want %v", tc.source, tc.target, c.Kind(), tc.kind)
			continue
		}
		files := c.Files()
		if len(files) != 1 || files[0] != filepath.Join(tdir, tc.file) {
			t.Errorf("Classify(%s, %s) files = %v, want %s", tc.source, tc.target, files, tc.file)
		}
		if c.Target() != tc.target {
			t.Errorf("Classify(%s, %s) target = %s", tc.source, tc.target, c.Target())
		}
	}
}

// TestClassifyList verifies that any list of sources is case 4 with one file per surface
func TestClassifyList(t *testing.T) {
	c, err := ClassifyList([]Space{"lh.layerB1", "rh.layerB2"}, "anat0pt8", "/t")
	if err != nil {
		t.Fatalf("ClassifyList failed: %v", err)
	}
	if c.Kind() != SurfaceToVolume {
		t.Fatalf("expected case 4, got %v", c.Kind())
	}
	want := []string{"/t/lh.anat0pt8-to-layerB1.mgz", "/t/rh.anat0pt8-to-layerB2.mgz"}
	got := c.Files()
	if len(got) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("file %d = %s, want %s", i, got[i], want[i])
		}
	}

	if _, err := ClassifyList(nil, "anat0pt8", "/t"); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error for empty list, got %v", err)
	}
}

// TestClassifyIsPayloadIndependent verifies that classification depends only on the names
func TestClassifyIsPayloadIndependent(t *testing.T) {
	a := Classify("func1pt8", "lh.white", "/x")
	b := Classify("func1pt8", "lh.white", "/x")
	if a.Kind() != b.Kind() || a.Files()[0] != b.Files()[0] {
		t.Errorf("classification is not deterministic: %v vs %v", a, b)
	}
}

func TestWithTransformFile(t *testing.T) {
	c := Classify("func1pt8", "MNI", "/x")
	o, err := WithTransformFile(c, "/custom.nii.gz")
	if err != nil {
		t.Fatalf("override failed: %v", err)
	}
	if o.Files()[0] != "/custom.nii.gz" || c.Files()[0] == "/custom.nii.gz" {
		t.Errorf("override should copy the case: orig %v, new %v", c.Files(), o.Files())
	}

	multi, _ := ClassifyList([]Space{"lh.white", "rh.white"}, "anat1pt0", "/x")
	if _, err := WithTransformFile(multi, "/one.mgz"); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestParse(t *testing.T) {
	for _, s := range Known() {
		if _, err := Parse(string(s)); err != nil {
			t.Errorf("Parse(%s) failed: %v", s, err)
		}
	}
	if _, err := Parse("lh.inflated"); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
	list, err := ParseList("lh.layerB1, rh.layerB3")
	if err != nil || len(list) != 2 || list[1] != "rh.layerB3" {
		t.Errorf("ParseList = %v, %v", list, err)
	}
}

func TestSpaceHelpers(t *testing.T) {
	if h := Space("rh.pial").Hemisphere(); h != "rh" {
		t.Errorf("Hemisphere = %q", h)
	}
	if Space("anat0pt8").IsSurface() || !FSAverage.IsSurface() || FSAverage.IsNativeSurface() {
		t.Error("surface predicates are wrong")
	}
	if l := Space("lh.layerB2").Layer(); l != "layerB2" {
		t.Errorf("Layer = %q", l)
	}
	g, ok := TargetGeometry(Anat0pt8)
	if !ok || g.Res != 320 || g.VoxelSize != 0.8 {
		t.Errorf("TargetGeometry(anat0pt8) = %+v, %v", g, ok)
	}
	if g, _ := TargetGeometry(Func1pt8); g.Res != 0 {
		t.Errorf("func1pt8 should have no scatter resolution, got %d", g.Res)
	}
}
