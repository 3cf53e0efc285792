package bmp

import (
	"fmt"
	"sync"
)

// DefaultMemoryBudget はデフォルトのセグメント用メモリ上限（バイト）
const DefaultMemoryBudget = 16 << 20

// Allocator はセグメントのピクセルバッファを確保・解放する
// 確保できない場合はエラーを返す（パニックしない）。
type Allocator interface {
	Alloc(pixels int) ([]uint16, error)
	Free(buf []uint16)
}

// BudgetAllocator は合計サイズに上限を持つヒープアロケータ
// 小さな作業メモリしか持たない環境を再現するため、上限を超える確保は失敗する。
type BudgetAllocator struct {
	budget int // バイト数（0以下は無制限）
	inUse  int
	mu     sync.Mutex
}

// NewBudgetAllocator は上限 budget バイトのアロケータを作成する
func NewBudgetAllocator(budget int) *BudgetAllocator {
	return &BudgetAllocator{budget: budget}
}

// Alloc は pixels 個分のRGB565バッファを確保する
func (a *BudgetAllocator) Alloc(pixels int) ([]uint16, error) {
	if pixels <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d: %w", pixels, ErrMalloc)
	}
	size := pixels * 2

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.budget > 0 && (size > a.budget || a.inUse+size > a.budget) {
		return nil, fmt.Errorf("need %d bytes, %d of %d in use: %w", size, a.inUse, a.budget, ErrMalloc)
	}
	a.inUse += size
	return make([]uint16, pixels), nil
}

// Free は Alloc で確保したバッファを返却する
func (a *BudgetAllocator) Free(buf []uint16) {
	if len(buf) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inUse -= len(buf) * 2
	if a.inUse < 0 {
		a.inUse = 0
	}
}

// InUse は現在確保中のバイト数を返す
func (a *BudgetAllocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// Budget は上限バイト数を返す
func (a *BudgetAllocator) Budget() int {
	return a.budget
}
