package trail

import (
	"log"

	"github.com/decker502/seqanim/pkg/types"
)

// Buffer 轨迹捕获缓冲区
//
// 使用方式：
//
//	buf := trail.NewBuffer(256, 8192, trail.Fade(800))
//	buf.Record(types.Blue, types.EndPrimary, x, y, nowMs)
//	points := buf.Snapshot(types.Blue, nowMs)
//
// Snapshot 返回的切片在下一次 Snapshot 调用前有效（内部复用，避免每帧分配）。
type Buffer struct {
	policy  Policy
	pending *Policy

	rings   [types.ObjectCount][types.MaxEnds]*ring
	visible [types.ObjectCount]bool

	loopClears int

	scratch []Point
}

// NewBuffer 创建轨迹缓冲区
//
// 参数：
//   - capacity: 每个端点环形缓冲区的初始容量
//   - maxPoints: persistent 策略下单个端点可增长到的最大点数；
//     到达上限后 persistent 也覆盖最旧的点，内存始终有界
//   - policy: 初始策略
func NewBuffer(capacity, maxPoints int, policy Policy) *Buffer {
	b := &Buffer{policy: policy}
	for _, obj := range types.Objects {
		b.visible[obj] = true
		for e := 0; e < types.MaxEnds; e++ {
			b.rings[obj][e] = newRing(capacity, maxPoints)
		}
	}
	return b
}

// SetPolicy 暂存新策略，在下一次 Record 或 BeginFrame 时生效
func (b *Buffer) SetPolicy(p Policy) {
	b.pending = &p
}

// Policy 返回当前生效的策略
func (b *Buffer) Policy() Policy {
	return b.policy
}

// PendingPolicy 返回尚未生效的策略
func (b *Buffer) PendingPolicy() (Policy, bool) {
	if b.pending == nil {
		return Policy{}, false
	}
	return *b.pending, true
}

// BeginFrame 在帧边界应用暂存的策略
func (b *Buffer) BeginFrame() {
	b.applyPending()
}

func (b *Buffer) applyPending() {
	if b.pending == nil {
		return
	}
	if *b.pending != b.policy {
		log.Printf("[Trail] Policy %s → %s", b.policy, *b.pending)
	}
	b.policy = *b.pending
	b.pending = nil
}

// Record 追加一个轨迹点
// 策略为 off 时不记录；fade 策略同时丢弃超过时长的旧点
func (b *Buffer) Record(obj types.ObjectID, end types.EndID, x, y, timestampMs float64) {
	b.applyPending()
	if !b.policy.Enabled() || !obj.Valid() || end < 0 || int(end) >= types.MaxEnds {
		return
	}

	r := b.rings[obj][end]
	if b.policy.Mode == ModeFade {
		r.dropBefore(timestampMs - b.policy.FadeDurationMs)
	}
	r.push(Point{X: x, Y: y, TimestampMs: timestampMs, End: end}, b.policy.Mode == ModePersistent)
}

// Snapshot 返回对象当前可见的点，按时间从旧到新排列
// 对象不可见或策略为 off 时返回空
func (b *Buffer) Snapshot(obj types.ObjectID, nowMs float64) []Point {
	b.scratch = b.AppendSnapshot(b.scratch[:0], obj, nowMs)
	return b.scratch
}

// AppendSnapshot 将可见点追加到 dst 并返回
func (b *Buffer) AppendSnapshot(dst []Point, obj types.ObjectID, nowMs float64) []Point {
	if !obj.Valid() || !b.visible[obj] || !b.policy.Enabled() {
		return dst
	}

	cutoff := nowMs - b.policy.FadeDurationMs
	fade := b.policy.Mode == ModeFade
	keep := func(p Point) bool { return !fade || p.TimestampMs >= cutoff }

	// 两个端点各自有序，归并输出
	r0, r1 := b.rings[obj][types.EndPrimary], b.rings[obj][types.EndSecondary]
	i, j := 0, 0
	for i < r0.len() || j < r1.len() {
		var p Point
		if j >= r1.len() || (i < r0.len() && r0.at(i).TimestampMs <= r1.at(j).TimestampMs) {
			p = r0.at(i)
			i++
		} else {
			p = r1.at(j)
			j++
		}
		if keep(p) {
			dst = append(dst, p)
		}
	}
	return dst
}

// ObserveWrap 通知播放从结尾回到了开头
// 只有宿主的播放时钟知道什么是回绕，向后拖动不是回绕，不应调用此方法。
// loopClear 策略下清空一次；返回是否发生了清空
func (b *Buffer) ObserveWrap() bool {
	b.applyPending()
	if b.policy.Mode != ModeLoopClear {
		return false
	}
	b.clearRings()
	b.loopClears++
	return true
}

// LoopClears 返回回绕清空的次数
func (b *Buffer) LoopClears() int {
	return b.loopClears
}

// Clear 清空全部缓冲区（序列切换或显式重置时调用）
func (b *Buffer) Clear() {
	b.clearRings()
}

func (b *Buffer) clearRings() {
	for _, obj := range types.Objects {
		for e := 0; e < types.MaxEnds; e++ {
			b.rings[obj][e].clear()
		}
	}
}

// SetObjectVisible 设置对象可见性
// 不可见的对象仍然持续记录，恢复可见时轨迹立即出现
func (b *Buffer) SetObjectVisible(obj types.ObjectID, visible bool) {
	if obj.Valid() {
		b.visible[obj] = visible
	}
}

// ObjectVisible 返回对象可见性
func (b *Buffer) ObjectVisible(obj types.ObjectID) bool {
	return obj.Valid() && b.visible[obj]
}

// Len 返回对象已缓冲的点数（不考虑可见性与淡出）
func (b *Buffer) Len(obj types.ObjectID) int {
	if !obj.Valid() {
		return 0
	}
	n := 0
	for e := 0; e < types.MaxEnds; e++ {
		n += b.rings[obj][e].len()
	}
	return n
}

// Resize 画布尺寸变化时按比例缩放已记录的点
func (b *Buffer) Resize(oldW, oldH, newW, newH int) {
	if oldW <= 0 || oldH <= 0 || (oldW == newW && oldH == newH) {
		return
	}
	sx := float64(newW) / float64(oldW)
	sy := float64(newH) / float64(oldH)
	for _, obj := range types.Objects {
		for e := 0; e < types.MaxEnds; e++ {
			b.rings[obj][e].scale(sx, sy)
		}
	}
}
