package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// UnlimitedMemory は --memory でセグメント用メモリを無制限にする値
const UnlimitedMemory = -1

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	Inputs       []string      // 読み込むBMPファイル名（BaseDir からの相対パス）
	BaseDir      string        // ファイルを探すディレクトリ
	ListFile     string        // ファイル名一覧（1行1ファイル）
	ListEncoding string        // 一覧ファイルの文字コード（utf-8, sjis）
	Timeout      time.Duration // ビューアーを閉じるまでの時間（0は無制限）
	LogLevel     string        // ログレベル（debug, info, warn, error）
	Headless     bool          // ヘッドレスモード（ウィンドウを開かない）
	ShowHelp     bool          // ヘルプ表示フラグ

	Info   bool   // 幅と高さだけを表示する
	Verify bool   // 別のデコーダーの結果と比較する
	View   bool   // 読み込んだ画像をウィンドウに表示する
	OutDir string // PNG の書き出し先（空なら書き出さない）

	Segments      int   // セグメント数の上限（0はデフォルト）
	SegmentHeight int   // セグメントあたりの行数（0はデフォルト）
	BufferPixels  int   // 読み込みバッファのピクセル数（0はデフォルト）
	Memory        int64 // セグメント用メモリの上限バイト数（0はデフォルト、-1は無制限）

	ScreenWidth  int    // 直接描画する画面の幅（0なら RAM に読み込む）
	ScreenHeight int    // 直接描画する画面の高さ
	Rotation     int    // 画面の回転（0〜3）
	X, Y         int    // 描画位置
	Background   uint32 // 画像の外側を塗る色（0xRRGGBB）
}

// DrawMode は画面への直接描画が指定されているかどうかを返す
func (c *Config) DrawMode() bool {
	return c.ScreenWidth > 0 && c.ScreenHeight > 0
}

// 値を取らないフラグ（並べ替え時に次の引数を値として扱わない）
var boolFlags = map[string]bool{
	"h": true, "help": true,
	"headless": true,
	"info":     true,
	"verify":   true,
	"view":     true,
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("segbmp", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	config := &Config{}

	var timeoutSec int
	var screen, background string
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	fs.StringVar(&config.BaseDir, "dir", ".", "BMPファイルを探すディレクトリ")
	fs.StringVar(&config.BaseDir, "d", ".", "BMPファイルを探すディレクトリ（短縮形）")
	fs.StringVar(&config.ListFile, "list", "", "ファイル名一覧")
	fs.StringVar(&config.ListEncoding, "list-encoding", "utf-8", "一覧ファイルの文字コード")
	fs.BoolVar(&config.Info, "info", false, "幅と高さだけを表示")
	fs.BoolVar(&config.Verify, "verify", false, "golang.org/x/image/bmp の結果と比較")
	fs.BoolVar(&config.View, "view", false, "ウィンドウに表示")
	fs.StringVar(&config.OutDir, "out", "", "PNGの書き出し先")

	fs.IntVar(&config.Segments, "segments", 0, "セグメント数の上限")
	fs.IntVar(&config.SegmentHeight, "segment-height", 0, "セグメントあたりの行数")
	fs.IntVar(&config.BufferPixels, "buffer-pixels", 0, "読み込みバッファのピクセル数")
	fs.Int64Var(&config.Memory, "memory", 0, "セグメント用メモリの上限（バイト）")

	fs.StringVar(&screen, "screen", "", "直接描画する画面サイズ（WxH）")
	fs.IntVar(&config.Rotation, "rotation", 0, "画面の回転（0〜3）")
	fs.IntVar(&config.X, "x", 0, "描画位置X")
	fs.IntVar(&config.Y, "y", 0, "描画位置Y")
	fs.StringVar(&background, "background", "000000", "画像の外側を塗る色（RRGGBB）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	// 環境変数からタイムアウトを取得（コマンドラインフラグが優先）
	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	// 環境変数からログレベルを取得（コマンドラインフラグが優先）
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	// 環境変数からメモリ上限を取得（コマンドラインフラグが優先）
	if config.Memory == 0 {
		if memEnv := os.Getenv("SEGBMP_MEMORY"); memEnv != "" {
			m, err := strconv.ParseInt(memEnv, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid SEGBMP_MEMORY %q: %w", memEnv, err)
			}
			config.Memory = m
		}
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	// デコーダーの設定値の検証
	for _, v := range []struct {
		name  string
		value int64
	}{
		{"segments", int64(config.Segments)},
		{"segment-height", int64(config.SegmentHeight)},
		{"buffer-pixels", int64(config.BufferPixels)},
	} {
		if v.value < 0 {
			return nil, fmt.Errorf("%s must be non-negative, got %d", v.name, v.value)
		}
	}
	if config.Memory < UnlimitedMemory {
		return nil, fmt.Errorf("memory must be non-negative or %d for no limit, got %d", UnlimitedMemory, config.Memory)
	}

	switch strings.ToLower(config.ListEncoding) {
	case "utf-8", "utf8", "sjis", "shift_jis", "shift-jis", "cp932":
	default:
		return nil, fmt.Errorf("invalid list encoding: %s (must be utf-8 or sjis)", config.ListEncoding)
	}

	if screen != "" {
		w, h, err := parseSize(screen)
		if err != nil {
			return nil, err
		}
		config.ScreenWidth, config.ScreenHeight = w, h
	}
	if config.Rotation < 0 || config.Rotation > 3 {
		return nil, fmt.Errorf("rotation must be 0-3, got %d", config.Rotation)
	}
	bg, err := parseColor(background)
	if err != nil {
		return nil, err
	}
	config.Background = bg

	// 位置引数（BMPファイル名）
	config.Inputs = fs.Args()

	return config, nil
}

// parseSize は "320x240" 形式のサイズを解析する
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid screen size %q (want WxH)", s)
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid screen size %q (want WxH)", s)
	}
	return w, h, nil
}

// parseColor は "RRGGBB" または "#RRGGBB" 形式の色を解析する
func parseColor(s string) (uint32, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return 0, fmt.Errorf("invalid color %q (want RRGGBB)", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q (want RRGGBB): %w", s, err)
	}
	return uint32(v), nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			// "--x=-5" のように値を含む場合とブール型フラグは次の引数を取らない
			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") || boolFlags[name] {
				continue
			}
			// 値は "-5" のように - で始まることがある
			if i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `segbmp - segmented 24-bit BMP decoder

Usage:
  segbmp [options] [file.bmp ...]

Arguments:
  file.bmp      読み込むBMPファイル（--dir からの相対パス、大文字小文字は区別しない）

Options:
  -d, --dir <path>            BMPファイルを探すディレクトリ（デフォルト: .）
  --list <file>               ファイル名一覧から読み込む（# で始まる行は無視）
  --list-encoding <enc>       一覧ファイルの文字コード: utf-8, sjis（デフォルト: utf-8）
  --info                      幅と高さだけを表示
  --verify                    golang.org/x/image/bmp の結果と画素単位で比較
  --out <dir>                 デコード結果をPNGで書き出す
  --view                      デコード結果をウィンドウに表示
  --segments <n>              セグメント数の上限（デフォルト: 12）
  --segment-height <rows>     セグメントあたりの行数（デフォルト: 20）
  --buffer-pixels <n>         読み込みバッファのピクセル数（デフォルト: 200）
  --memory <bytes>            セグメント用メモリの上限（デフォルト: 16MiB、-1 で無制限）
  --screen <WxH>              RAMに読み込まず、このサイズの画面に直接描画
  --rotation <0-3>            画面の回転（時計回り90度単位）
  --x <n>, --y <n>            描画位置（負の値で左上を切り取る）
  --background <RRGGBB>       直接描画で画像の外側を塗る色（デフォルト: 000000）
  -t, --timeout <seconds>     指定秒数後にビューアーを閉じる（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --headless                  ヘッドレスモード（ウィンドウを開かない）
  -h, --help                  このヘルプを表示

Environment Variables:
  HEADLESS=1                  ヘッドレスモードを有効化
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル
  SEGBMP_MEMORY=<bytes>       セグメント用メモリの上限（-1 で無制限）

Examples:
  segbmp -d images logo.bmp           logo.bmp を読み込んで結果を表示
  segbmp --info images/*.bmp          サイズだけを表示
  segbmp --verify --out png a.bmp     比較してPNGに書き出す
  segbmp --screen 240x320 --x -10 a.bmp  240x320 の画面に直接描画
  segbmp --list files.txt --list-encoding sjis  Shift_JIS の一覧から読み込む
`)
}
