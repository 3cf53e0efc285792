// Package bmp は非圧縮24ビットBMPをストリーミングでデコードする。
//
// 画像全体を1つの連続領域に確保せず、固定の最大行数を持つセグメントに分割して
// RGB565で保持する。ファイルは小さな固定長バッファを通して1パスで読み、
// シークは行の先頭に対してのみ行う。
//
// サポートするのは BITMAPCOREHEADER 以降の "BM" 形式、1プレーン、24ビット、
// 非圧縮のみ。それ以外はすべて ErrFormat になる。
package bmp

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/zurustar/segbmp/pkg/fileutil"
)

// Reader はファイルシステムからBMPを読み込む
//
// Reader は同時に1つのファイルハンドルしか持たない。1つの Reader を複数の
// goroutine から同時に使ってはいけない。
type Reader struct {
	fsys fileutil.FileSystem
	file fileutil.Stream

	maxSegments   int
	segmentHeight int
	bufferPixels  int
	alloc         Allocator
	yield         func()
	transport     sync.Locker

	log *slog.Logger
}

// Option は Reader のオプションを設定する関数型
type Option func(*Reader)

// WithLogger はロガーを設定する
func WithLogger(log *slog.Logger) Option {
	return func(r *Reader) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMaxSegments はセグメント数の上限を設定する（0以下は無視）
func WithMaxSegments(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxSegments = n
		}
	}
}

// WithSegmentHeight はセグメントあたりの最大行数を設定する（0以下は無視）
func WithSegmentHeight(h int) Option {
	return func(r *Reader) {
		if h > 0 {
			r.segmentHeight = h
		}
	}
}

// WithBufferPixels は読み込みバッファのピクセル数を設定する（0以下は無視）
func WithBufferPixels(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.bufferPixels = n
		}
	}
}

// WithAllocator はセグメントバッファのアロケータを設定する
func WithAllocator(a Allocator) Option {
	return func(r *Reader) {
		if a != nil {
			r.alloc = a
		}
	}
}

// WithYield は1行ごとに呼ばれる関数を設定する（デフォルトは runtime.Gosched）
func WithYield(fn func()) Option {
	return func(r *Reader) {
		if fn != nil {
			r.yield = fn
		}
	}
}

// WithTransportLock はデコード全体を通して保持するロックを設定する
// ストレージと表示デバイスが同じバスを共有している場合に使う。
// ロックは読み込みごとではなくデコード1回につき1度だけ取得する。
func WithTransportLock(l sync.Locker) Option {
	return func(r *Reader) {
		r.transport = l
	}
}

// NewReader は fsys から読み込む Reader を作成する
func NewReader(fsys fileutil.FileSystem, opts ...Option) *Reader {
	r := &Reader{
		fsys:          fsys,
		maxSegments:   DefaultMaxSegments,
		segmentHeight: DefaultSegmentHeight,
		bufferPixels:  DefaultBufferPixels,
		alloc:         NewBudgetAllocator(DefaultMemoryBudget),
		yield:         runtime.Gosched,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxHeight はデコード可能な最大の高さを返す
// これを超える画像は下側が切り捨てられる。
func (r *Reader) MaxHeight() int {
	return r.maxSegments * r.segmentHeight
}

// LoadBMP は name のBMPを img に読み込む
//
// img の内容は最初に解放される。失敗した場合 img は空のまま残る。
// 返すエラーは ErrFileNotFound、ErrFormat、ErrMalloc のいずれかをラップする。
func (r *Reader) LoadBMP(name string, img *Image) error {
	img.Reset()

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
		r.log.Warn("LoadBMP: unsupported file", "name", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	r.log.Debug("LoadBMP: header parsed",
		"name", name,
		"width", hdr.Width,
		"height", hdr.Height,
		"flip", hdr.Flip,
		"dataOffset", hdr.DataOffset,
		"headerSize", hdr.HeaderSize)

	segments, err := allocateSegments(r.alloc, hdr.Width, hdr.Height, r.maxSegments, r.segmentHeight)
	if err != nil {
		r.log.Warn("LoadBMP: allocation failed", "name", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	if hdr.Height > r.MaxHeight() {
		r.log.Warn("LoadBMP: image taller than segment capacity, rows truncated",
			"name", name, "height", hdr.Height, "maxHeight", r.MaxHeight())
	}

	dec := newScanlineDecoder(r.file, hdr, r.bufferPixels, r.yield)
	if err := dec.decodeInto(segments); err != nil {
		for _, s := range segments {
			r.alloc.Free(s.pix)
		}
		r.log.Warn("LoadBMP: decode failed", "name", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}

	img.format = FormatPacked16
	img.width = hdr.Width
	img.height = hdr.Height
	img.segmentHeight = r.segmentHeight
	img.segments = segments
	img.alloc = r.alloc

	r.log.Debug("LoadBMP: loaded", "name", name, "segments", len(segments), "coveredHeight", img.CoveredHeight())
	return nil
}

// Dimensions はBMPの幅と高さだけを読み込む
// ビット深度や圧縮方式は検証しないので、デコードできない画像でも成功しうる。
func (r *Reader) Dimensions(name string) (width, height int, err error) {
	if err := r.open(name); err != nil {
		return 0, 0, err
	}
	defer r.closeFile()

	width, height, err = readDimensions(r.file)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", name, err)
	}
	return width, height, nil
}

// Close は開いたままのファイルがあれば閉じる
func (r *Reader) Close() error {
	return r.closeFile()
}

// open は前回のハンドルを閉じてから name を開く
func (r *Reader) open(name string) error {
	if err := r.closeFile(); err != nil {
		r.log.Warn("failed to close previous file", "error", err)
	}
	f, err := fileutil.OpenStream(r.fsys, name)
	if err != nil {
		r.log.Debug("open failed", "name", name, "error", err)
		return fmt.Errorf("%s: %w: %w", name, ErrFileNotFound, err)
	}
	r.file = f
	return nil
}

func (r *Reader) closeFile() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// isOpen はテスト用にハンドルの有無を返す
func (r *Reader) isOpen() bool {
	return r.file != nil
}
