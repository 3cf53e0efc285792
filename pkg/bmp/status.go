package bmp

import (
	"errors"
	"fmt"
	"io"
)

// デコード失敗の分類。呼び出し元は errors.Is で判定する。
var (
	// ErrFileNotFound はファイルを開けなかったことを示す
	ErrFileNotFound = errors.New("bmp: file not found")
	// ErrFormat はBMPでない、またはサポート外のBMP形式であることを示す
	ErrFormat = errors.New("bmp: unsupported format")
	// ErrMalloc はセグメントバッファを確保できなかったことを示す
	ErrMalloc = errors.New("bmp: segment allocation failed")
)

// Status はデコード結果の閉じた分類
type Status int

const (
	StatusSuccess      Status = iota // 成功（画面外にクリップされた場合も含む）
	StatusFileNotFound               // ファイルを開けない
	StatusFormat                     // サポート外の形式
	StatusMalloc                     // メモリ確保失敗（LoadBMPのみ）
)

// StatusOf はエラーを Status に変換する
// 分類できないエラーは StatusFormat として扱う。
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrFileNotFound):
		return StatusFileNotFound
	case errors.Is(err, ErrMalloc):
		return StatusMalloc
	default:
		return StatusFormat
	}
}

// String は人が読める状態メッセージを返す
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success!"
	case StatusFileNotFound:
		return "File not found."
	case StatusFormat:
		return "Not a supported BMP variant."
	case StatusMalloc:
		return "Malloc failed (insufficient RAM)."
	default:
		return fmt.Sprintf("Unknown status (%d).", int(s))
	}
}

// PrintStatus は状態メッセージを1行で w に書き出す
func PrintStatus(w io.Writer, s Status) {
	fmt.Fprintln(w, s.String())
}
