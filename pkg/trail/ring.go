package trail

import "github.com/decker502/seqanim/pkg/types"

// Point 对象某一端在某一时刻的位置（画布像素）
type Point struct {
	X           float64
	Y           float64
	TimestampMs float64
	End         types.EndID
}

// ring 按时间排序的环形缓冲区
// 满时：允许增长则倍增容量（不超过 max），否则覆盖最旧的点
type ring struct {
	buf  []Point
	head int
	size int
	max  int
}

func newRing(capacity, max int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	if max < capacity {
		max = capacity
	}
	return &ring{buf: make([]Point, capacity), max: max}
}

func (r *ring) len() int { return r.size }

// at 返回第 i 个点（0 为最旧）
func (r *ring) at(i int) Point {
	return r.buf[(r.head+i)%len(r.buf)]
}

func (r *ring) push(p Point, grow bool) {
	if r.size == len(r.buf) {
		if grow && len(r.buf) < r.max {
			r.grow()
		} else {
			// 覆盖最旧
			r.buf[r.head] = p
			r.head = (r.head + 1) % len(r.buf)
			return
		}
	}
	r.buf[(r.head+r.size)%len(r.buf)] = p
	r.size++
}

func (r *ring) grow() {
	n := len(r.buf) * 2
	if n > r.max {
		n = r.max
	}
	buf := make([]Point, n)
	for i := 0; i < r.size; i++ {
		buf[i] = r.at(i)
	}
	r.buf = buf
	r.head = 0
}

// dropBefore 丢弃时间戳早于 cutoff 的点
func (r *ring) dropBefore(cutoffMs float64) {
	for r.size > 0 && r.buf[r.head].TimestampMs < cutoffMs {
		r.head = (r.head + 1) % len(r.buf)
		r.size--
	}
}

func (r *ring) clear() {
	r.head = 0
	r.size = 0
}

// scale 缩放所有点的坐标
func (r *ring) scale(sx, sy float64) {
	for i := 0; i < r.size; i++ {
		idx := (r.head + i) % len(r.buf)
		r.buf[idx].X *= sx
		r.buf[idx].Y *= sy
	}
}
