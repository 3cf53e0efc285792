package bmp

import (
	"image"
	"image/color"
)

// Format は Image が保持しているバッファの種類
type Format int

const (
	FormatNone     Format = iota // 画像なし（デコード前、または失敗後）
	FormatPacked16               // RGB565 セグメント
)

func (f Format) String() string {
	switch f {
	case FormatNone:
		return "none"
	case FormatPacked16:
		return "packed16"
	default:
		return "unknown"
	}
}

// Image はRAMへ読み込まれた画像
//
// 画像は上から順に並んだセグメントとして保持される。Format が FormatNone 以外のとき
// セグメントは1つ以上あり、最後以外のセグメントはすべて segmentHeight 行ちょうどである。
// ゼロ値は空の画像として使える。
type Image struct {
	format        Format
	width         int
	height        int
	segmentHeight int
	segments      []*Segment
	alloc         Allocator
}

// Reset はすべてのセグメントを解放して空の状態に戻す（何度呼んでもよい）
func (img *Image) Reset() {
	if img.alloc != nil {
		for _, s := range img.segments {
			img.alloc.Free(s.pix)
		}
	}
	for _, s := range img.segments {
		s.pix = nil
	}
	img.segments = nil
	img.alloc = nil
	img.format = FormatNone
	img.width = 0
	img.height = 0
	img.segmentHeight = 0
}

// Format は保持している画像の種類を返す
func (img *Image) Format() Format {
	return img.format
}

// Width は画像の幅を返す（画像がない場合は0）
func (img *Image) Width() int {
	if img.format == FormatNone {
		return 0
	}
	return img.width
}

// Height はBMPに記録された画像の高さを返す（画像がない場合は0）
// セグメント数の上限を超える画像では CoveredHeight より大きくなる。
func (img *Image) Height() int {
	if img.format == FormatNone {
		return 0
	}
	return img.height
}

// CoveredHeight はセグメントに実際に格納されている行数を返す
func (img *Image) CoveredHeight() int {
	total := 0
	for _, s := range img.segments {
		total += s.height
	}
	return total
}

// Truncated は画像の下端がセグメント数の上限で切り捨てられたかどうかを返す
func (img *Image) Truncated() bool {
	return img.format != FormatNone && img.CoveredHeight() < img.height
}

// SegmentHeight はセグメントあたりの最大行数を返す
func (img *Image) SegmentHeight() int {
	return img.segmentHeight
}

// Segments は上から順に並んだセグメントを返す
func (img *Image) Segments() []*Segment {
	return img.segments
}

// Pixel は (x, y) のRGB565値を返す。範囲外は0。
func (img *Image) Pixel(x, y int) Packed16 {
	if img.format == FormatNone || x < 0 || y < 0 || x >= img.width || img.segmentHeight <= 0 {
		return 0
	}
	idx := y / img.segmentHeight
	if idx >= len(img.segments) {
		return 0
	}
	s := img.segments[idx]
	row := y % img.segmentHeight
	if row >= s.height {
		return 0
	}
	return Packed16(s.pix[row*s.width+x])
}

// ColorModel は image.Image を実装する
func (img *Image) ColorModel() color.Model {
	return Packed16Model
}

// Bounds は格納済みの領域を返す
func (img *Image) Bounds() image.Rectangle {
	if img.format == FormatNone {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, img.width, img.CoveredHeight())
}

// At は image.Image を実装する
func (img *Image) At(x, y int) color.Color {
	return img.Pixel(x, y)
}

// Draw は各セグメントを上から順に display へ転送する
// x, y は画像左上の位置。画面外の部分は display 側でクリップされる。
func (img *Image) Draw(display Display, x, y int) error {
	if img.format != FormatPacked16 {
		return nil
	}
	for _, s := range img.segments {
		if err := display.DrawPackedPixels(x, y, s.pix, s.width, s.height); err != nil {
			return err
		}
		y += img.segmentHeight
	}
	return nil
}
