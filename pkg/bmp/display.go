package bmp

import (
	"fmt"
	"image"
	"image/color"
	"sync"
)

// Display はRGB565ピクセルを受け取る出力デバイス
type Display interface {
	// Size は回転を反映した論理的な幅と高さを返す
	Size() (width, height int)
	// DrawPackedPixels は (x, y) を左上として width×height 個のピクセルを書き込む
	DrawPackedPixels(x, y int, buf []uint16, width, height int) error
}

// Framebuffer はメモリ上のRGB565表示デバイス
//
// Rotation は時計回りに 90° 単位（0〜3）。論理座標で書き込まれたピクセルを
// 物理バッファ上の位置に変換して格納する。
type Framebuffer struct {
	physWidth  int
	physHeight int
	rotation   int
	pix        []uint16
	dirty      bool
	mu         sync.RWMutex
}

// NewFramebuffer は物理サイズ width×height のフレームバッファを作成する
func NewFramebuffer(width, height, rotation int) (*Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid framebuffer size %dx%d", width, height)
	}
	if rotation < 0 || rotation > 3 {
		return nil, fmt.Errorf("invalid rotation %d (must be 0-3)", rotation)
	}
	return &Framebuffer{
		physWidth:  width,
		physHeight: height,
		rotation:   rotation,
		pix:        make([]uint16, width*height),
	}, nil
}

// Size は回転後の論理サイズを返す
func (fb *Framebuffer) Size() (int, int) {
	if fb.rotation%2 == 1 {
		return fb.physHeight, fb.physWidth
	}
	return fb.physWidth, fb.physHeight
}

// Rotation は回転設定を返す
func (fb *Framebuffer) Rotation() int {
	return fb.rotation
}

// physical は論理座標を物理座標に変換する
func (fb *Framebuffer) physical(x, y int) (int, int) {
	switch fb.rotation {
	case 1:
		return fb.physWidth - 1 - y, x
	case 2:
		return fb.physWidth - 1 - x, fb.physHeight - 1 - y
	case 3:
		return y, fb.physHeight - 1 - x
	default:
		return x, y
	}
}

// DrawPackedPixels は Display を実装する。論理画面外のピクセルは捨てる。
func (fb *Framebuffer) DrawPackedPixels(x, y int, buf []uint16, width, height int) error {
	if width < 0 || height < 0 || len(buf) < width*height {
		return fmt.Errorf("pixel buffer too short: %d < %dx%d", len(buf), width, height)
	}
	lw, lh := fb.Size()

	fb.mu.Lock()
	defer fb.mu.Unlock()

	for row := 0; row < height; row++ {
		ly := y + row
		if ly < 0 || ly >= lh {
			continue
		}
		for col := 0; col < width; col++ {
			lx := x + col
			if lx < 0 || lx >= lw {
				continue
			}
			px, py := fb.physical(lx, ly)
			fb.pix[py*fb.physWidth+px] = buf[row*width+col]
		}
	}
	fb.dirty = true
	return nil
}

// Pixel は論理座標 (x, y) の値を返す
func (fb *Framebuffer) Pixel(x, y int) Packed16 {
	lw, lh := fb.Size()
	if x < 0 || y < 0 || x >= lw || y >= lh {
		return 0
	}
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	px, py := fb.physical(x, y)
	return Packed16(fb.pix[py*fb.physWidth+px])
}

// Fill は画面全体を c で塗りつぶす
func (fb *Framebuffer) Fill(c Packed16) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i := range fb.pix {
		fb.pix[i] = uint16(c)
	}
	fb.dirty = true
}

// TakeDirty は前回の呼び出し以降に書き込みがあったかを返し、フラグを下ろす
func (fb *Framebuffer) TakeDirty() bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	d := fb.dirty
	fb.dirty = false
	return d
}

// ColorModel は image.Image を実装する
func (fb *Framebuffer) ColorModel() color.Model {
	return Packed16Model
}

// Bounds は物理パネルの範囲を返す（パネルに映る向きのまま）
func (fb *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, fb.physWidth, fb.physHeight)
}

// At は物理座標で画素を返す
func (fb *Framebuffer) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= fb.physWidth || y >= fb.physHeight {
		return Packed16(0)
	}
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return Packed16(fb.pix[y*fb.physWidth+x])
}
