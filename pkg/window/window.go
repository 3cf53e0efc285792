package window

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/zurustar/segbmp/pkg/bmp"
	"github.com/zurustar/segbmp/pkg/logger"
	"golang.org/x/image/font/basicfont"
)

var (
	// 背景色 #0087C8
	backgroundColor = color.RGBA{0x00, 0x87, 0xC8, 0xFF}
	// テキスト色（白）
	textColor = color.White
	// 失敗したファイルのテキスト色（黄色）
	errorTextColor = color.RGBA{0xFF, 0xFF, 0x00, 0xFF}
	// デフォルトフォント
	defaultFace = text.NewGoXFace(basicfont.Face7x13)
)

const (
	// 状態表示行の高さ
	statusBarHeight = 20
	// 画面の最小サイズ
	minScreenWidth  = 320
	minScreenHeight = 240
)

// Entry はビューアーに表示する1ファイル分の結果
type Entry struct {
	Name   string
	Status bmp.Status
	// Source はデコード結果（bmp.Image または bmp.Framebuffer）。失敗時は nil。
	Source image.Image
	// Truncated は下端が切り捨てられたかどうか
	Truncated bool
}

// dirtySource は前回の転送以降の書き込みを報告できる画像（bmp.Framebuffer）
type dirtySource interface {
	TakeDirty() bool
}

// Game はEbitengineのゲームインターフェースを実装する
type Game struct {
	entries   []Entry
	index     int           // 表示中のエントリー
	timeout   time.Duration // タイムアウト時間
	startTime time.Time     // 開始時刻

	// 転送済みのテクスチャ（エントリーごと）
	textures map[int]*ebiten.Image

	mu sync.RWMutex
}

// NewGame Gameを作成
func NewGame(entries []Entry, timeout time.Duration) *Game {
	return &Game{
		entries:   entries,
		timeout:   timeout,
		startTime: time.Now(),
		textures:  make(map[int]*ebiten.Image),
	}
}

// Current 表示中のエントリーを返す（エントリーがなければ nil）
func (g *Game) Current() *Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.entries) == 0 {
		return nil
	}
	return &g.entries[g.index]
}

// Next 次のエントリーへ移動する（末尾では先頭に戻る）
func (g *Game) Next() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.entries) > 0 {
		g.index = (g.index + 1) % len(g.entries)
	}
}

// Prev 前のエントリーへ移動する（先頭では末尾に戻る）
func (g *Game) Prev() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.entries) > 0 {
		g.index = (g.index + len(g.entries) - 1) % len(g.entries)
	}
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *Game) Update() error {
	// タイムアウトチェック
	if g.timedOut(time.Now()) {
		return ebiten.Termination
	}

	// Escキー（1回だけ反応）
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyRight) || inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.Next()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyLeft) {
		g.Prev()
	}
	return nil
}

func (g *Game) timedOut(now time.Time) bool {
	return g.timeout > 0 && now.Sub(g.startTime) >= g.timeout
}

// Draw 画面描画（Ebitengineが毎フレーム呼び出す）
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	e := g.Current()
	if e == nil {
		drawText(screen, "No images", 8, 4, textColor)
		return
	}

	var clr color.Color = textColor
	if e.Status != bmp.StatusSuccess {
		clr = errorTextColor
	}
	drawText(screen, statusLine(g.index, len(g.entries), e), 8, 4, clr)

	if tex := g.texture(g.index, e); tex != nil {
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(0, statusBarHeight)
		screen.DrawImage(tex, op)
	}
}

// texture はエントリーの画像を ebiten.Image に転送する
// 転送後に書き込まれた画像は次の呼び出しで転送し直す
func (g *Game) texture(i int, e *Entry) *ebiten.Image {
	if e.Source == nil || e.Source.Bounds().Empty() {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	tex, cached := g.textures[i]
	if !g.needsUpload(i, e) {
		return tex
	}
	b := e.Source.Bounds()
	if !cached {
		tex = ebiten.NewImage(b.Dx(), b.Dy())
		g.textures[i] = tex
	}
	tex.WritePixels(ToRGBA(e.Source))
	logger.GetLogger().Debug("texture uploaded", "name", e.Name, "width", b.Dx(), "height", b.Dy(), "reupload", cached)
	return tex
}

// needsUpload はテクスチャが未作成か、画像に書き込みがあった場合に true を返す
// 呼び出し側が g.mu を保持すること
func (g *Game) needsUpload(i int, e *Entry) bool {
	dirty := false
	if d, ok := e.Source.(dirtySource); ok {
		dirty = d.TakeDirty()
	}
	_, cached := g.textures[i]
	return dirty || !cached
}

// Layout 画面サイズを返す
// 一番大きい画像と状態表示行が収まる大きさにする
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.screenSize()
}

func (g *Game) screenSize() (int, int) {
	w, h := minScreenWidth, minScreenHeight
	for _, e := range g.entries {
		if e.Source == nil {
			continue
		}
		b := e.Source.Bounds()
		w = max(w, b.Dx())
		h = max(h, b.Dy()+statusBarHeight)
	}
	return w, h
}

func drawText(screen *ebiten.Image, s string, x, y float64, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(screen, s, defaultFace, op)
}

// statusLine は状態表示行の文字列を返す
func statusLine(index, total int, e *Entry) string {
	s := fmt.Sprintf("[%d/%d] %s: %s", index+1, total, e.Name, e.Status)
	if e.Source != nil {
		b := e.Source.Bounds()
		s += fmt.Sprintf(" %dx%d", b.Dx(), b.Dy())
	}
	if e.Truncated {
		s += " (truncated)"
	}
	return s
}

// ToRGBA は画像を WritePixels 用の RGBA バイト列に変換する
func ToRGBA(src image.Image) []byte {
	b := src.Bounds()
	if rgba, ok := src.(*image.RGBA); ok && rgba.Stride == 4*b.Dx() {
		return rgba.Pix[:4*b.Dx()*b.Dy()]
	}
	pix := make([]byte, 0, 4*b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(src.At(x, y)).(color.RGBA)
			pix = append(pix, c.R, c.G, c.B, c.A)
		}
	}
	return pix
}

// RunHeadless ヘッドレスモードで結果の一覧を書き出す
func RunHeadless(entries []Entry, writer io.Writer) error {
	if len(entries) == 0 {
		fmt.Fprintln(writer, "No images")
		return nil
	}
	for i := range entries {
		if _, err := fmt.Fprintln(writer, statusLine(i, len(entries), &entries[i])); err != nil {
			return err
		}
	}
	return nil
}

// Run GUIモードでウィンドウを実行
func Run(entries []Entry, timeout time.Duration) error {
	game := NewGame(entries, timeout)

	// ウィンドウ設定
	w, h := game.screenSize()
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("segbmp - BMP viewer")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	// ゲームを実行
	if err := ebiten.RunGame(game); err != nil {
		return fmt.Errorf("failed to run viewer: %w", err)
	}
	return nil
}
