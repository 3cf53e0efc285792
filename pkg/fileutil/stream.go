package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// ErrNotSeekable はファイルがランダムアクセスに対応していない場合のエラー
var ErrNotSeekable = errors.New("fileutil: file does not support seeking")

// Stream はデコーダーが使う最小限のランダムアクセス読み込みハンドル
//
// 読み込み位置は Stream 自身が保持するため、Position はシステムコールを発行しない。
type Stream interface {
	io.Reader
	// Seek はファイル先頭からの絶対オフセットへ移動する
	Seek(offset int64) error
	// Position は現在の読み込み位置を返す
	Position() int64
	// Close はハンドルを閉じる（2回目以降は何もしない）
	Close() error
}

// OpenStream は fsys からファイルを開いて Stream として返す
// 呼び出し元でCloseする必要がある
func OpenStream(fsys FileSystem, name string) (Stream, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	rs, ok := f.(io.ReadSeeker)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("%s: %w", name, ErrNotSeekable)
	}
	return &seekStream{file: f, rs: rs}, nil
}

// seekStream は fs.File を Stream に適合させる
type seekStream struct {
	file   fs.File
	rs     io.ReadSeeker
	pos    int64
	closed bool
}

func (s *seekStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, fs.ErrClosed
	}
	n, err := s.rs.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *seekStream) Seek(offset int64) error {
	if s.closed {
		return fs.ErrClosed
	}
	pos, err := s.rs.Seek(offset, io.SeekStart)
	if err != nil {
		return err
	}
	s.pos = pos
	return nil
}

func (s *seekStream) Position() int64 {
	return s.pos
}

func (s *seekStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
