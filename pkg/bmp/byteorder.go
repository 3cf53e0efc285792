package bmp

import "io"

// readLE16 は現在位置からリトルエンディアンの16ビット値を読む
// 読めなかったバイトは0として扱う（短い読み込みはエラーにしない）。
func readLE16(r io.Reader) uint16 {
	var b [2]byte
	io.ReadFull(r, b[:])
	return uint16(b[0]) | uint16(b[1])<<8
}

// readLE32 は現在位置からリトルエンディアンの32ビット値を読む
func readLE32(r io.Reader) uint32 {
	var b [4]byte
	io.ReadFull(r, b[:])
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
