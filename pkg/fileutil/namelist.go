package fileutil

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// ReadNameList は1行に1ファイル名のリストを読み込む
// 空行と "#" で始まる行は無視する。
//
// encoding は "utf-8"（空文字列も同じ）または "sjis"。
// 古いWindows環境で作られたリストはShift_JISで保存されていることが多い。
func ReadNameList(r io.Reader, encoding string) ([]string, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
	case "sjis", "shift_jis", "shift-jis", "cp932":
		r = transform.NewReader(r, japanese.ShiftJIS.NewDecoder())
	default:
		return nil, fmt.Errorf("unsupported list encoding: %s", encoding)
	}

	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read name list: %w", err)
	}
	return names, nil
}
