package prerender

import (
	"math"

	"github.com/decker502/seqanim/pkg/render"
)

// Frame 预渲染的一帧
type Frame struct {
	Surface  render.Surface
	Progress float64 // 整体进度 0..1
	Time     float64 // 播放时间（拍）
}

// FrameCache 按量化时间步索引的有序帧缓存
type FrameCache struct {
	identity string
	frames   []Frame
}

func newFrameCache(identity string, frames []Frame) *FrameCache {
	return &FrameCache{identity: identity, frames: frames}
}

// Identity 返回帧所属的序列 ID
func (c *FrameCache) Identity() string {
	if c == nil {
		return ""
	}
	return c.identity
}

// Len 返回帧数
func (c *FrameCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.frames)
}

// At 返回第 i 帧，越界时返回 nil
func (c *FrameCache) At(i int) *Frame {
	if c == nil || i < 0 || i >= len(c.frames) {
		return nil
	}
	return &c.frames[i]
}

// Index 将进度四舍五入到最近的时间步
func (c *FrameCache) Index(progress float64) int {
	n := c.Len()
	if n == 0 {
		return -1
	}
	if progress != progress || progress <= 0 || n == 1 {
		return 0
	}
	if progress >= 1 {
		return n - 1
	}
	return int(math.Round(progress * float64(n-1)))
}

// Nearest 返回最接近 progress 的帧
func (c *FrameCache) Nearest(progress float64) *Frame {
	return c.At(c.Index(progress))
}

// Dispose 释放全部帧
func (c *FrameCache) Dispose() {
	if c == nil {
		return
	}
	disposeFrames(c.frames)
	c.frames = nil
}

func disposeFrames(frames []Frame) {
	for i := range frames {
		if frames[i].Surface != nil {
			frames[i].Surface.Dispose()
			frames[i].Surface = nil
		}
	}
}
