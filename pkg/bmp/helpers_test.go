package bmp

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"sync"
)

// testBMP はテスト用BMPファイルの組み立て設定
type testBMP struct {
	signature   string // 空なら "BM"
	width       int
	height      int  // 正の値
	topDown     bool // true なら高さを負で記録する
	headerSize  uint32
	planes      uint16
	depth       uint16
	compression uint32
	gap         int  // ヘッダーと画像データの間の余白バイト数
	truncate    int  // 末尾から削るバイト数
	padByte     byte // 行パディングに使う値（ずれの検出用）
}

// testColor は座標から決まるテスト用の色
func testColor(x, y int) (r, g, b uint8) {
	return uint8(x*37 + y*11), uint8(x*5 + y*73), uint8(x*101 ^ y*7)
}

// expected は (x, y) に期待されるRGB565値
func expected(x, y int) Packed16 {
	r, g, b := testColor(x, y)
	return ToPacked16(r, g, b)
}

// dataOffset は画像データの開始位置
func (tb testBMP) dataOffset() int {
	headerSize := tb.headerSize
	if headerSize == 0 {
		headerSize = 40
	}
	// 旧形式ヘッダーでも幅と高さは32ビットで書くので16バイト必要
	return 14 + max(int(headerSize), 16) + tb.gap
}

func (tb testBMP) bytes() []byte {
	if tb.signature == "" {
		tb.signature = "BM"
	}
	if tb.headerSize == 0 {
		tb.headerSize = 40
	}
	if tb.planes == 0 {
		tb.planes = 1
	}
	if tb.depth == 0 {
		tb.depth = 24
	}

	rowSize := max(((int(tb.depth)*tb.width+31)/32)*4, 0)
	dataOffset := tb.dataOffset()

	var buf bytes.Buffer
	le := binary.LittleEndian

	buf.WriteString(tb.signature[:2])
	binary.Write(&buf, le, uint32(dataOffset+rowSize*tb.height)) // ファイルサイズ
	binary.Write(&buf, le, uint32(0))                            // 予約
	binary.Write(&buf, le, uint32(dataOffset))

	binary.Write(&buf, le, tb.headerSize)
	binary.Write(&buf, le, int32(tb.width))
	h := int32(tb.height)
	if tb.topDown {
		h = -h
	}
	binary.Write(&buf, le, h)
	binary.Write(&buf, le, tb.planes)
	binary.Write(&buf, le, tb.depth)
	if tb.headerSize > 12 {
		binary.Write(&buf, le, tb.compression)
		binary.Write(&buf, le, uint32(rowSize*tb.height)) // 画像サイズ
		binary.Write(&buf, le, int32(2835))               // 水平解像度
		binary.Write(&buf, le, int32(2835))               // 垂直解像度
		binary.Write(&buf, le, uint32(0))                 // 色数
		binary.Write(&buf, le, uint32(0))                 // 重要な色数
		for buf.Len() < 14+int(tb.headerSize) {
			buf.WriteByte(0)
		}
	}
	for buf.Len() < dataOffset {
		buf.WriteByte(0xEE)
	}

	for i := 0; i < tb.height; i++ {
		// ファイル上のi行目が画像のどの行か
		y := tb.height - 1 - i
		if tb.topDown {
			y = i
		}
		row := make([]byte, rowSize)
		for x := 0; x < tb.width && (x+1)*3 <= rowSize; x++ {
			r, g, b := testColor(x, y)
			row[x*3], row[x*3+1], row[x*3+2] = b, g, r
		}
		for j := max(tb.width*3, 0); j < rowSize; j++ {
			row[j] = tb.padByte
		}
		buf.Write(row)
	}

	data := buf.Bytes()
	if tb.truncate > 0 && tb.truncate <= len(data) {
		data = data[:len(data)-tb.truncate]
	}
	return data
}

// memFS はオープン中のハンドル数とシーク回数を数えるメモリ上のファイルシステム
type memFS struct {
	files map[string][]byte

	mu     sync.Mutex
	open   int
	opens  int
	seeks  int
	reads  int

	// dataFrom 以降から始まるReadで要求された最大バイト数（ヘッダーの読み込みを除く）
	dataFrom   int64
	maxDataReq int
}

func newMemFS() *memFS {
	return &memFS{files: make(map[string][]byte)}
}

func (m *memFS) add(name string, data []byte) *memFS {
	m.files[name] = data
	return m
}

func (m *memFS) Open(name string) (fs.File, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	m.mu.Lock()
	m.open++
	m.opens++
	m.mu.Unlock()
	return &memFile{r: bytes.NewReader(data), fs: m}, nil
}

func (m *memFS) BasePath() string { return "" }

// skipHeader はヘッダーの読み込みを maxDataReq から除外する
func (m *memFS) skipHeader(tb testBMP) *memFS {
	m.dataFrom = int64(tb.dataOffset())
	return m
}

func (m *memFS) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *memFS) resetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens, m.seeks, m.reads, m.maxDataReq = 0, 0, 0, 0
}

type memFile struct {
	r      *bytes.Reader
	fs     *memFS
	closed bool
}

func (f *memFile) Read(p []byte) (int, error) {
	f.fs.mu.Lock()
	f.fs.reads++
	if pos := f.r.Size() - int64(f.r.Len()); pos >= f.fs.dataFrom && len(p) > f.fs.maxDataReq {
		f.fs.maxDataReq = len(p)
	}
	f.fs.mu.Unlock()
	return f.r.Read(p)
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	f.fs.mu.Lock()
	f.fs.seeks++
	f.fs.mu.Unlock()
	return f.r.Seek(offset, whence)
}

func (f *memFile) Stat() (fs.FileInfo, error) { return nil, fs.ErrInvalid }

func (f *memFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.fs.mu.Lock()
	f.fs.open--
	f.fs.mu.Unlock()
	return nil
}

// countingLocker はLock/Unlockの回数を数える
type countingLocker struct {
	mu      sync.Mutex
	locks   int
	unlocks int
}

func (l *countingLocker) Lock()   { l.mu.Lock(); l.locks++ }
func (l *countingLocker) Unlock() { l.unlocks++; l.mu.Unlock() }

// drawCall は DrawPackedPixels の呼び出し記録
type drawCall struct {
	x, y, width, height int
}

// recordingDisplay は描画呼び出しを記録しつつ Framebuffer に書き込む
type recordingDisplay struct {
	*Framebuffer
	calls []drawCall
}

func (d *recordingDisplay) DrawPackedPixels(x, y int, buf []uint16, width, height int) error {
	d.calls = append(d.calls, drawCall{x, y, width, height})
	return d.Framebuffer.DrawPackedPixels(x, y, buf, width, height)
}
