package bmp

import "image/color"

// Packed16 は 5ビット赤・6ビット緑・5ビット青の16ビットカラー（RGB565）
type Packed16 uint16

// ToPacked16 は8ビット/チャンネルの色をRGB565に変換する
// 下位ビットは切り捨てる（丸めやディザリングはしない）。
func ToPacked16(r, g, b uint8) Packed16 {
	return Packed16(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b>>3))
}

// RGB は各チャンネルを8ビットに展開して返す
// 上位ビットを下位に複製するので 0x1F は 0xFF になる。
func (c Packed16) RGB() (r, g, b uint8) {
	r5 := uint8(c >> 11 & 0x1F)
	g6 := uint8(c >> 5 & 0x3F)
	b5 := uint8(c & 0x1F)
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}

// RGBA は color.Color を実装する
func (c Packed16) RGBA() (r, g, b, a uint32) {
	r8, g8, b8 := c.RGB()
	return color.RGBA{R: r8, G: g8, B: b8, A: 0xFF}.RGBA()
}

// Packed16Model は任意の色をRGB565に変換するカラーモデル
var Packed16Model = color.ModelFunc(func(c color.Color) color.Color {
	if p, ok := c.(Packed16); ok {
		return p
	}
	r, g, b, _ := c.RGBA()
	return ToPacked16(uint8(r>>8), uint8(g>>8), uint8(b>>8))
})
