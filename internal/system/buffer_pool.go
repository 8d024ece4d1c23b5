package system

import (
	"image"
	"sync"
)

// FramePool переиспользует RGBA-кадры одного размера между вызовами рендера,
// чтобы не нагружать GC при 30 кадрах в секунду.
type FramePool struct {
	mu    sync.RWMutex
	pools map[image.Point]*sync.Pool
}

var frames = NewFramePool()

func NewFramePool() *FramePool {
	return &FramePool{pools: make(map[image.Point]*sync.Pool)}
}

// GetImage берёт из общего пула кадр размером size. Содержимое не очищается.
func GetImage(size image.Point) *image.RGBA {
	return frames.Get(size)
}

// PutImage возвращает кадр в общий пул.
func PutImage(img *image.RGBA) {
	frames.Put(img)
}

func (p *FramePool) pool(size image.Point) *sync.Pool {
	p.mu.RLock()
	pool, ok := p.pools[size]
	p.mu.RUnlock()
	if ok {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pool, ok = p.pools[size]; !ok {
		pool = &sync.Pool{
			New: func() any {
				return image.NewRGBA(image.Rectangle{Max: size})
			},
		}
		p.pools[size] = pool
	}
	return pool
}

func (p *FramePool) Get(size image.Point) *image.RGBA {
	return p.pool(size).Get().(*image.RGBA)
}

// Put принимает только кадры с началом в (0,0); остальные отдаются GC.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	p.pool(img.Rect.Max).Put(img)
}

// Clear заливает кадр нулями (прозрачный чёрный).
func Clear(img *image.RGBA) {
	clear(img.Pix)
}
