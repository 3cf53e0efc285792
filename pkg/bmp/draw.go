package bmp

import (
	"errors"
	"fmt"
)

// clip は画像 (imgW×imgH) を画面 (dispW×dispH) の (x, y) に置いたときの描画範囲を求める
// 左・上にはみ出した分は画像側の開始位置をずらし、右・下にはみ出した分は幅と高さを削る。
func clip(x, y, imgW, imgH, dispW, dispH int) (clipRect, bool) {
	c := clipRect{x: x, y: y, width: imgW, height: imgH}
	if c.x < 0 {
		c.loadX = -c.x
		c.width += c.x
		c.x = 0
	}
	if c.y < 0 {
		c.loadY = -c.y
		c.height += c.y
		c.y = 0
	}
	if c.x+c.width > dispW {
		c.width = dispW - c.x
	}
	if c.y+c.height > dispH {
		c.height = dispH - c.y
	}
	return c, c.width > 0 && c.height > 0
}

// DrawBMP は name のBMPを display の (x, y) に直接描画する
//
// RAMへの読み込みと同じ行単位のシークと変換を使うが、書き込み先は
// 1行分以下の小さなストリップで、バッファを読み直すたびに display へ転送する。
// 画像が完全に画面外にある場合は何も描画せずに成功する。
func (r *Reader) DrawBMP(name string, display Display, x, y int) error {
	if display == nil {
		return errors.New("bmp: nil display")
	}

	if r.transport != nil {
		r.transport.Lock()
		defer r.transport.Unlock()
	}

	if err := r.open(name); err != nil {
		return err
	}
	defer r.closeFile()

	hdr, err := parseHeader(r.file)
	if err != nil {
		r.log.Warn("DrawBMP: unsupported file", "name", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}

	dispW, dispH := display.Size()
	c, visible := clip(x, y, hdr.Width, hdr.Height, dispW, dispH)
	if !visible {
		r.log.Debug("DrawBMP: image clipped off screen", "name", name, "x", x, "y", y)
		return nil
	}
	r.log.Debug("DrawBMP: drawing",
		"name", name,
		"x", c.x, "y", c.y,
		"loadX", c.loadX, "loadY", c.loadY,
		"width", c.width, "height", c.height)

	dec := newScanlineDecoder(r.file, hdr, r.bufferPixels, r.yield)
	strip := make([]uint16, r.bufferPixels)
	if err := dec.decodeTo(display, c, strip); err != nil {
		r.log.Warn("DrawBMP: decode failed", "name", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
