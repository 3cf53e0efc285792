package bmp

import "image"

// Compare は img の格納済み領域を参照画像 ref と比べ、RGB565に変換しても一致しない画素数を返す
// first は最初に一致しなかった座標（一致した場合はゼロ値）。
// ref は別のデコーダー（golang.org/x/image/bmp など）で読み込んだ同じファイルを想定する。
func Compare(img *Image, ref image.Image) (mismatches int, first image.Point) {
	b := img.Bounds()
	rb := ref.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			want := Packed16(0)
			if image.Pt(x+rb.Min.X, y+rb.Min.Y).In(rb) {
				want = Packed16Model.Convert(ref.At(x+rb.Min.X, y+rb.Min.Y)).(Packed16)
			}
			if img.Pixel(x, y) != want {
				if mismatches == 0 {
					first = image.Pt(x, y)
				}
				mismatches++
			}
		}
	}
	return mismatches, first
}
