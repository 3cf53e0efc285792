package app

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/zurustar/segbmp/pkg/bmp"
	"github.com/zurustar/segbmp/pkg/cli"
	"github.com/zurustar/segbmp/pkg/fileutil"
	"github.com/zurustar/segbmp/pkg/logger"
	"github.com/zurustar/segbmp/pkg/window"
	xbmp "golang.org/x/image/bmp"
)

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config *cli.Config
	log    *slog.Logger
	fsys   fileutil.FileSystem
	reader *bmp.Reader

	stdout io.Writer // 結果の出力先
	logOut io.Writer // ログの出力先
}

// Option は Application のオプションを設定する関数型
type Option func(*Application)

// WithStdout は結果の出力先を設定する
func WithStdout(w io.Writer) Option {
	return func(app *Application) {
		app.stdout = w
	}
}

// WithLogOutput はログの出力先を設定する
func WithLogOutput(w io.Writer) Option {
	return func(app *Application) {
		app.logOut = w
	}
}

// New Applicationを作成
func New(opts ...Option) *Application {
	app := &Application{
		stdout: os.Stdout,
		logOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Run アプリケーションを実行
// いずれかのファイルの処理に失敗した場合はエラーを返す
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp(app.stdout)
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 3. 入力ファイルの収集
	names, err := app.collectInputs()
	if err != nil {
		return fmt.Errorf("failed to collect inputs: %w", err)
	}
	if len(names) == 0 {
		cli.PrintHelp(app.stdout)
		return errors.New("no input files")
	}

	// 4. デコーダーの準備
	app.fsys = fileutil.NewRealFS(app.config.BaseDir)
	app.reader = bmp.NewReader(app.fsys, app.readerOptions()...)
	defer app.reader.Close()

	app.log.Info("Application started", "files", len(names), "dir", app.fsys.BasePath(), "maxHeight", app.reader.MaxHeight())

	// 5. 各ファイルの処理
	var entries []window.Entry
	failed := 0
	for _, name := range names {
		entry, err := app.process(name)
		if err != nil {
			failed++
			app.log.Debug("file failed", "name", name, "error", err)
		}
		if app.config.View {
			entries = append(entries, entry)
		} else if img, ok := entry.Source.(*bmp.Image); ok {
			img.Reset()
		}
	}

	// 6. 結果の表示
	if app.config.View {
		err := app.view(entries)
		for _, e := range entries {
			if img, ok := e.Source.(*bmp.Image); ok {
				img.Reset()
			}
		}
		if err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(names))
	}
	app.log.Info("Application terminated normally")
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLoggerWithWriter(app.logOut, app.config.LogLevel); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// collectInputs 位置引数と一覧ファイルからファイル名を集める
func (app *Application) collectInputs() ([]string, error) {
	names := append([]string{}, app.config.Inputs...)
	if app.config.ListFile == "" {
		return names, nil
	}

	f, err := os.Open(app.config.ListFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	listed, err := fileutil.ReadNameList(f, app.config.ListEncoding)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", app.config.ListFile, err)
	}
	app.log.Debug("name list loaded", "file", app.config.ListFile, "count", len(listed), "encoding", app.config.ListEncoding)
	return append(names, listed...), nil
}

// readerOptions 設定から bmp.Reader のオプションを作る（0 はデフォルトのまま）
func (app *Application) readerOptions() []bmp.Option {
	opts := []bmp.Option{
		bmp.WithLogger(app.log),
		bmp.WithMaxSegments(app.config.Segments),
		bmp.WithSegmentHeight(app.config.SegmentHeight),
		bmp.WithBufferPixels(app.config.BufferPixels),
	}
	switch {
	case app.config.Memory == cli.UnlimitedMemory:
		// 上限0の BudgetAllocator は確保量を数えるだけで拒否しない
		opts = append(opts, bmp.WithAllocator(bmp.NewBudgetAllocator(0)))
	case app.config.Memory > 0:
		opts = append(opts, bmp.WithAllocator(bmp.NewBudgetAllocator(int(app.config.Memory))))
	}
	return opts
}

// process 1ファイルを処理して結果を表示する
func (app *Application) process(name string) (window.Entry, error) {
	entry := window.Entry{Name: name}

	switch {
	case app.config.Info:
		w, h, err := app.reader.Dimensions(name)
		entry.Status = bmp.StatusOf(err)
		if err != nil {
			app.printStatus(name, entry.Status)
			return entry, err
		}
		fmt.Fprintf(app.stdout, "%s: %dx%d\n", name, w, h)
		return entry, nil

	case app.config.DrawMode():
		fb, err := bmp.NewFramebuffer(app.config.ScreenWidth, app.config.ScreenHeight, app.config.Rotation)
		if err != nil {
			return entry, err
		}
		bg := app.config.Background
		fb.Fill(bmp.ToPacked16(uint8(bg>>16), uint8(bg>>8), uint8(bg)))
		err = app.reader.DrawBMP(name, fb, app.config.X, app.config.Y)
		entry.Status = bmp.StatusOf(err)
		app.printStatus(name, entry.Status)
		if err != nil {
			return entry, err
		}
		w, h := fb.Size()
		fmt.Fprintf(app.stdout, "  drawn at (%d,%d) on %dx%d screen, rotation %d\n", app.config.X, app.config.Y, w, h, fb.Rotation())
		entry.Source = fb
		return entry, app.export(name, fb)
	}

	img := &bmp.Image{}
	err := app.reader.LoadBMP(name, img)
	entry.Status = bmp.StatusOf(err)
	app.printStatus(name, entry.Status)
	if err != nil {
		return entry, err
	}
	entry.Source = img
	entry.Truncated = img.Truncated()

	fmt.Fprintf(app.stdout, "  %dx%d, %d segment(s)\n", img.Width(), img.Height(), len(img.Segments()))
	if img.Truncated() {
		fmt.Fprintf(app.stdout, "  truncated to %d rows\n", img.CoveredHeight())
	}

	if app.config.Verify {
		if err := app.verify(name, img); err != nil {
			return entry, err
		}
	}
	return entry, app.export(name, img)
}

// printStatus "name: メッセージ" の形式で状態を表示する
func (app *Application) printStatus(name string, s bmp.Status) {
	fmt.Fprintf(app.stdout, "%s: ", name)
	bmp.PrintStatus(app.stdout, s)
}

// verify golang.org/x/image/bmp でデコードした結果と比較する
func (app *Application) verify(name string, img *bmp.Image) error {
	f, err := app.fsys.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	ref, err := xbmp.Decode(f)
	if err != nil {
		return fmt.Errorf("%s: reference decode failed: %w", name, err)
	}
	mismatches, first := bmp.Compare(img, ref)
	if mismatches > 0 {
		fmt.Fprintf(app.stdout, "  verify: %d pixel(s) differ, first at (%d,%d)\n", mismatches, first.X, first.Y)
		return fmt.Errorf("%s: %d pixel(s) differ from reference decoder", name, mismatches)
	}
	fmt.Fprintln(app.stdout, "  verify: OK")
	return nil
}

// export 画像をPNGで書き出す（--out 指定時のみ）
func (app *Application) export(name string, img image.Image) error {
	if app.config.OutDir == "" {
		return nil
	}
	if err := os.MkdirAll(app.config.OutDir, 0o755); err != nil {
		return err
	}

	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	out := filepath.Join(app.config.OutDir, strings.TrimSuffix(base, path.Ext(base))+".png")
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	app.log.Info("PNG written", "name", name, "path", out)
	return nil
}

// view 結果を表示する（ヘッドレスモードでは一覧を書き出す）
func (app *Application) view(entries []window.Entry) error {
	if app.config.Headless {
		app.log.Info("Headless mode: printing summary instead of opening a window")
		return window.RunHeadless(entries, app.stdout)
	}
	if err := window.Run(entries, app.config.Timeout); err != nil {
		return fmt.Errorf("failed to run viewer: %w", err)
	}
	return nil
}
