package bmp

import (
	"fmt"
	"io"
)

// 0x4D42 = ASCII "BM"（Windows BMP のシグネチャ）
// OS/2 のビットマップ配列などその他のシグネチャはサポートしない。
const signatureBM = 0x4D42

// legacyHeaderSize 以下の情報ヘッダー（BITMAPCOREHEADER）には圧縮方式と色数がない
const legacyHeaderSize = 12

// Header はデコード可否の判定に必要なBMPヘッダーの値
type Header struct {
	DataOffset  uint32 // 画像データの開始位置
	HeaderSize  uint32 // 情報ヘッダーのサイズ（BMPのバージョン）
	Width       int    // 幅（ピクセル）
	Height      int    // 高さ（ピクセル、常に正）
	Flip        bool   // true: ボトムアップ（通常のBMP）、false: トップダウン
	Planes      uint16 // プレーン数
	Depth       uint16 // ビット深度
	Compression uint32 // 圧縮方式
	Colors      uint32 // パレット色数（0の場合は 1<<Depth）
}

// RowSize はパディングを含む1行のバイト数を返す（4バイト境界）
func (h *Header) RowSize() int {
	return ((int(h.Depth)*h.Width + 31) / 32) * 4
}

// rowOffset は出力画像の行 row に対応するファイル上の位置を返す
func (h *Header) rowOffset(row int) int64 {
	src := row
	if h.Flip {
		src = h.Height - 1 - row
	}
	return int64(h.DataOffset) + int64(src)*int64(h.RowSize())
}

// parseHeader はファイル先頭からBMPヘッダーを読み込み、デコード可能か検証する
// r はファイル先頭に位置していること。
func parseHeader(r io.Reader) (*Header, error) {
	if sig := readLE16(r); sig != signatureBM {
		return nil, fmt.Errorf("invalid signature 0x%04X: %w", sig, ErrFormat)
	}

	h := &Header{Flip: true}
	readLE32(r) // ファイルサイズ（無視）
	readLE32(r) // 作成者予約領域（無視）
	h.DataOffset = readLE32(r)

	h.HeaderSize = readLE32(r)
	h.Width = int(int32(readLE32(r)))
	height := int(int32(readLE32(r)))
	// 高さが負の場合はトップダウン
	if height < 0 {
		height = -height
		h.Flip = false
	}
	h.Height = height
	h.Planes = readLE16(r)
	h.Depth = readLE16(r)

	if h.HeaderSize > legacyHeaderSize {
		h.Compression = readLE32(r)
		readLE32(r) // 画像データサイズ（無視）
		readLE32(r) // 水平解像度（無視）
		readLE32(r) // 垂直解像度（無視）
		h.Colors = readLE32(r)
		readLE32(r) // 重要な色数（無視）
	}
	if h.Colors == 0 && h.Depth < 32 {
		h.Colors = 1 << h.Depth
	}

	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// validate はサポート対象（非圧縮24ビットBGR、1プレーン）かどうかを確認する
func (h *Header) validate() error {
	switch {
	case h.Planes != 1:
		return fmt.Errorf("planes must be 1, got %d: %w", h.Planes, ErrFormat)
	case h.Compression != 0:
		return fmt.Errorf("unsupported compression %d: %w", h.Compression, ErrFormat)
	case h.Depth != 24:
		return fmt.Errorf("unsupported bit depth %d: %w", h.Depth, ErrFormat)
	case h.Width <= 0:
		return fmt.Errorf("width must be positive, got %d: %w", h.Width, ErrFormat)
	case h.Height == 0:
		return fmt.Errorf("height must be non-zero: %w", ErrFormat)
	}
	return nil
}

// readDimensions はシグネチャと幅・高さだけを読む軽量版
// ビット深度や圧縮方式は検証しない。
func readDimensions(r io.Reader) (width, height int, err error) {
	if sig := readLE16(r); sig != signatureBM {
		return 0, 0, fmt.Errorf("invalid signature 0x%04X: %w", sig, ErrFormat)
	}
	readLE32(r) // ファイルサイズ
	readLE32(r) // 作成者予約領域
	readLE32(r) // 画像データの位置
	readLE32(r) // ヘッダーサイズ
	width = int(int32(readLE32(r)))
	height = int(int32(readLE32(r)))
	if height < 0 {
		height = -height
	}
	return width, height, nil
}
