package bmp

import (
	"errors"
	"fmt"
	"io"

	"github.com/zurustar/segbmp/pkg/fileutil"
)

// DefaultBufferPixels は読み込みバッファに収まるピクセル数（3バイト/ピクセル）
// 1行ごとにバッファを使い切るので、画面幅より大きくしても意味はない。
const DefaultBufferPixels = 200

// scanlineDecoder は小さな固定長バッファ経由でBGRピクセルを1行ずつ読み出す
type scanlineDecoder struct {
	src   fileutil.Stream
	hdr   *Header
	buf   []byte // 3*bufferPixels バイト
	n     int    // buf 内の有効バイト数
	idx   int    // 次に読むバイトの位置（idx >= n なら空）
	yield func()
}

func newScanlineDecoder(src fileutil.Stream, hdr *Header, bufferPixels int, yield func()) *scanlineDecoder {
	return &scanlineDecoder{
		src:   src,
		hdr:   hdr,
		buf:   make([]byte, 3*bufferPixels),
		yield: yield,
	}
}

// seekRow は出力画像の行 row（上端が0）の loadX 列目へ移動する
// 現在位置が既に一致していればシークしない。
func (d *scanlineDecoder) seekRow(row, loadX int) error {
	pos := d.hdr.rowOffset(row) + int64(loadX)*3
	if d.src.Position() == pos {
		return nil
	}
	if err := d.src.Seek(pos); err != nil {
		return fmt.Errorf("seek to row %d (offset %d): %w: %w", row, pos, ErrFormat, err)
	}
	// シーク後は必ずバッファを読み直す
	d.n, d.idx = 0, 0
	return nil
}

// fill は最大 want バイトをバッファに読み込む
// ファイル末尾で足りない分は0で埋める。
func (d *scanlineDecoder) fill(want int) error {
	want = min(want, len(d.buf))
	n, err := io.ReadFull(d.src, d.buf[:want])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read pixel data at offset %d: %w", d.src.Position(), err)
	}
	clear(d.buf[n:want])
	d.n, d.idx = want, 0
	return nil
}

// empty はバッファを使い切ったかどうかを返す
func (d *scanlineDecoder) empty() bool {
	return d.idx >= d.n
}

// next は次のピクセルをRGB565で返す
// remaining はこの行で残っているピクセル数（行末を越えて読まないため）。
func (d *scanlineDecoder) next(remaining int) (uint16, error) {
	if d.empty() {
		if err := d.fill(remaining * 3); err != nil {
			return 0, err
		}
	}
	b := d.buf[d.idx]
	g := d.buf[d.idx+1]
	r := d.buf[d.idx+2]
	d.idx += 3
	return uint16(ToPacked16(r, g, b)), nil
}

// decodeInto は全行をセグメントへ書き込む
// セグメントを使い切った時点でエラーなしで終了する。
func (d *scanlineDecoder) decodeInto(segments []*Segment) error {
	width := d.hdr.Width
	seg, dest := 0, 0
	for row := 0; seg < len(segments) && row < d.hdr.Height; row++ {
		d.yield()

		if err := d.seekRow(row, 0); err != nil {
			return err
		}
		for col := 0; col < width; col++ {
			px, err := d.next(width - col)
			if err != nil {
				return err
			}
			cur := segments[seg]
			cur.pix[dest] = px
			dest++
			if dest >= cur.width*cur.height {
				// セグメントが埋まったら次へ
				dest = 0
				seg++
				if seg >= len(segments) {
					break
				}
			}
		}
	}
	return nil
}

// clipRect は画面に描画する範囲
type clipRect struct {
	x, y          int // 画面上の左上
	loadX, loadY  int // 画像内の開始位置
	width, height int // 描画するピクセル数
}

// decodeTo はクリップ済みの範囲を display へ転送する
// strip はバッファを読み直すたびと行末でフラッシュする。
func (d *scanlineDecoder) decodeTo(display Display, clip clipRect, strip []uint16) error {
	for row := 0; row < clip.height; row++ {
		d.yield()

		if err := d.seekRow(row+clip.loadY, clip.loadX); err != nil {
			return err
		}
		flushed, n := 0, 0
		for col := 0; col < clip.width; col++ {
			if d.empty() && n > 0 {
				if err := display.DrawPackedPixels(clip.x+flushed, clip.y+row, strip[:n], n, 1); err != nil {
					return err
				}
				flushed += n
				n = 0
			}
			px, err := d.next(clip.width - col)
			if err != nil {
				return err
			}
			strip[n] = px
			n++
		}
		if n > 0 {
			if err := display.DrawPackedPixels(clip.x+flushed, clip.y+row, strip[:n], n, 1); err != nil {
				return err
			}
		}
	}
	return nil
}
