package app

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zurustar/segbmp/pkg/bmp"
	xbmp "golang.org/x/image/bmp"
	"golang.org/x/text/encoding/japanese"
)

// writeBMP は座標から色が決まる 24 ビット BMP を書き出す
func writeBMP(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 9), G: uint8(y * 5), B: uint8(x ^ y), A: 0xFF})
		}
	}
	var buf bytes.Buffer
	if err := xbmp.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"HEADLESS", "TIMEOUT", "LOG_LEVEL", "SEGBMP_MEMORY"} {
		t.Setenv(k, "")
	}
	var out bytes.Buffer
	app := New(WithStdout(&out), WithLogOutput(io.Discard))
	err := app.Run(args)
	return out.String(), err
}

func TestRun_Help(t *testing.T) {
	out, err := runApp(t, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "segbmp") || !strings.Contains(out, "Usage:") {
		t.Errorf("help output missing: %q", out)
	}
}

func TestRun_NoInputs(t *testing.T) {
	if _, err := runApp(t, "--headless"); err == nil {
		t.Error("expected error without input files")
	}
}

func TestRun_InvalidArgs(t *testing.T) {
	if _, err := runApp(t, "--log-level", "verbose", "a.bmp"); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestRun_LoadAndVerify(t *testing.T) {
	dir := t.TempDir()
	writeBMP(t, dir, "Logo.bmp", 30, 25)

	// 大文字小文字を区別しない
	out, err := runApp(t, "-d", dir, "--verify", "logo.BMP")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	for _, want := range []string{"logo.BMP: Success!", "30x25, 2 segment(s)", "verify: OK"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_FailuresAreReported(t *testing.T) {
	dir := t.TempDir()
	writeBMP(t, dir, "ok.bmp", 4, 4)
	if err := os.WriteFile(filepath.Join(dir, "text.bmp"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "-d", dir, "ok.bmp", "text.bmp", "none.bmp")
	if err == nil {
		t.Fatal("expected error when some files fail")
	}
	if !strings.Contains(err.Error(), "2 of 3") {
		t.Errorf("error = %v", err)
	}
	for _, want := range []string{
		"ok.bmp: Success!",
		"text.bmp: Not a supported BMP variant.",
		"none.bmp: File not found.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_MemoryBudget(t *testing.T) {
	dir := t.TempDir()
	writeBMP(t, dir, "big.bmp", 100, 100)

	out, err := runApp(t, "-d", dir, "--memory", "1000", "big.bmp")
	if err == nil {
		t.Fatal("expected allocation failure")
	}
	if !strings.Contains(out, "big.bmp: Malloc failed (insufficient RAM).") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRun_UnlimitedMemory(t *testing.T) {
	dir := t.TempDir()
	writeBMP(t, dir, "big.bmp", 100, 100)

	out, err := runApp(t, "-d", dir, "--memory", "-1", "--verify", "big.bmp")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "big.bmp: Success!") || !strings.Contains(out, "verify: OK") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRun_Truncated(t *testing.T) {
	dir := t.TempDir()
	writeBMP(t, dir, "tall.bmp", 3, 30)

	out, err := runApp(t, "-d", dir, "--segments", "2", "--segment-height", "10", "--verify", "tall.bmp")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "truncated to 20 rows") || !strings.Contains(out, "verify: OK") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRun_Info(t *testing.T) {
	dir := t.TempDir()
	writeBMP(t, dir, "a.bmp", 17, 9)

	out, err := runApp(t, "-d", dir, "--info", "a.bmp")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "a.bmp: 17x9") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRun_ExportPNG(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "png")
	writeBMP(t, dir, "pic.bmp", 12, 7)

	if out, err := runApp(t, "-d", dir, "--out", outDir, "pic.bmp"); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}

	f, err := os.Open(filepath.Join(outDir, "pic.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 12, 7) {
		t.Errorf("PNG bounds = %v", img.Bounds())
	}
	want := bmp.ToPacked16(uint8(5*9), uint8(3*5), uint8(5^3))
	if got := bmp.Packed16Model.Convert(img.At(5, 3)); got != want {
		t.Errorf("PNG pixel (5,3) = %v, want %v", got, want)
	}
}

func TestRun_DrawMode(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	writeBMP(t, dir, "d.bmp", 20, 20)

	out, err := runApp(t, "-d", dir, "--screen", "16x12", "--x", "-4", "--y", "-2", "--out", outDir, "d.bmp")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "d.bmp: Success!") || !strings.Contains(out, "drawn at (-4,-2) on 16x12 screen, rotation 0") {
		t.Errorf("unexpected output:\n%s", out)
	}

	f, err := os.Open(filepath.Join(outDir, "d.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 12 {
		t.Errorf("framebuffer PNG bounds = %v", img.Bounds())
	}
	// 画面の (0,0) には画像の (4,2) が描かれる
	want := bmp.ToPacked16(uint8(4*9), uint8(2*5), uint8(4^2))
	if got := bmp.Packed16Model.Convert(img.At(0, 0)); got != want {
		t.Errorf("pixel (0,0) = %v, want %v", got, want)
	}
}

func TestRun_OffScreenDrawSucceeds(t *testing.T) {
	dir := t.TempDir()
	writeBMP(t, dir, "d.bmp", 8, 8)

	outDir := t.TempDir()

	out, err := runApp(t, "-d", dir, "--screen", "16x12", "--rotation", "1", "--x", "100",
		"--background", "FF8000", "--out", outDir, "d.bmp")
	if err != nil {
		t.Fatalf("off-screen draw should succeed: %v", err)
	}
	if !strings.Contains(out, "d.bmp: Success!") || !strings.Contains(out, "on 12x16 screen, rotation 1") {
		t.Errorf("unexpected output:\n%s", out)
	}

	// 画像が画面外なので背景色だけが残る
	f, err := os.Open(filepath.Join(outDir, "d.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	want := bmp.ToPacked16(0xFF, 0x80, 0x00)
	b := img.Bounds()
	for _, p := range []image.Point{b.Min, {b.Max.X - 1, b.Max.Y - 1}} {
		if got := bmp.Packed16Model.Convert(img.At(p.X, p.Y)); got != want {
			t.Errorf("pixel %v = %v, want background %v", p, got, want)
		}
	}
}

func TestRun_ListFileShiftJIS(t *testing.T) {
	dir := t.TempDir()
	writeBMP(t, dir, "画像.bmp", 5, 5)
	writeBMP(t, dir, "b.bmp", 3, 3)

	list, err := japanese.ShiftJIS.NewEncoder().String("# 一覧\n画像.bmp\n\nb.bmp\n")
	if err != nil {
		t.Fatal(err)
	}
	listPath := filepath.Join(t.TempDir(), "list.txt")
	if err := os.WriteFile(listPath, []byte(list), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "-d", dir, "--list", listPath, "--list-encoding", "sjis")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	for _, want := range []string{"画像.bmp: Success!", "b.bmp: Success!"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_HeadlessView(t *testing.T) {
	dir := t.TempDir()
	writeBMP(t, dir, "v.bmp", 6, 6)

	out, err := runApp(t, "-d", dir, "--view", "--headless", "v.bmp", "gone.bmp")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	for _, want := range []string{"[1/2] v.bmp: Success! 6x6", "[2/2] gone.bmp: File not found."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
