package bmp

import (
	"errors"
	"fmt"
)

// セグメント構成のデフォルト値
// 最大デコード可能な高さは DefaultMaxSegments * DefaultSegmentHeight = 240 ピクセル。
const (
	DefaultMaxSegments   = 12
	DefaultSegmentHeight = 20
)

// Segment は画像の一部（最大 SegmentHeight 行）を保持する連続バッファ
type Segment struct {
	width  int
	height int
	pix    []uint16 // RGB565、行優先、パディングなし
}

// Width はセグメントの幅を返す
func (s *Segment) Width() int { return s.width }

// Height はセグメントの行数を返す
func (s *Segment) Height() int { return s.height }

// Pix はピクセルバッファを返す（len = Width*Height）
func (s *Segment) Pix() []uint16 { return s.pix }

// segmentHeights は高さ total の画像を最大 maxSegments 個、各 segmentHeight 行以下に分割する
// total が maxSegments*segmentHeight を超える場合、超過分は含まれない。
func segmentHeights(total, maxSegments, segmentHeight int) []int {
	var heights []int
	for i := 0; i < maxSegments && i*segmentHeight < total; i++ {
		heights = append(heights, min(segmentHeight, total-i*segmentHeight))
	}
	return heights
}

// allocateSegments は全セグメントのバッファを確保する
// 1つでも確保に失敗した場合は確保済みのバッファをすべて解放してエラーを返す。
func allocateSegments(alloc Allocator, width, height, maxSegments, segmentHeight int) ([]*Segment, error) {
	heights := segmentHeights(height, maxSegments, segmentHeight)
	segments := make([]*Segment, 0, len(heights))
	for i, h := range heights {
		pix, err := alloc.Alloc(width * h)
		if err != nil {
			for _, s := range segments {
				alloc.Free(s.pix)
			}
			if !errors.Is(err, ErrMalloc) {
				err = fmt.Errorf("%w: %w", ErrMalloc, err)
			}
			return nil, fmt.Errorf("segment %d (%dx%d): %w", i, width, h, err)
		}
		segments = append(segments, &Segment{width: width, height: h, pix: pix})
	}
	return segments, nil
}
