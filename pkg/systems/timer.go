package systems

// FrameHandle 帧回调句柄，0 表示无效
type FrameHandle uint64

// FrameTimer 宿主提供的帧定时原语
// 等价于可取消的 requestAnimationFrame
type FrameTimer interface {
	// RequestFrame 注册一个在下一帧执行的回调
	RequestFrame(cb func()) FrameHandle
	// CancelFrame 取消尚未执行的回调，对已执行或未知句柄无效果
	CancelFrame(h FrameHandle)
}

type pendingFrame struct {
	handle FrameHandle
	cb     func()
}

// TickTimer 由宿主每帧调用一次 Flush 驱动的 FrameTimer 实现
//
// 在 Flush 期间新注册的回调推迟到下一次 Flush 执行，
// 与浏览器动画帧的语义一致。非线程安全。
type TickTimer struct {
	next    FrameHandle
	pending []pendingFrame
	running []pendingFrame
}

// NewTickTimer 创建帧定时器
func NewTickTimer() *TickTimer {
	return &TickTimer{}
}

// RequestFrame 注册回调
func (t *TickTimer) RequestFrame(cb func()) FrameHandle {
	if cb == nil {
		return 0
	}
	t.next++
	t.pending = append(t.pending, pendingFrame{handle: t.next, cb: cb})
	return t.next
}

// CancelFrame 取消回调
func (t *TickTimer) CancelFrame(h FrameHandle) {
	for i, p := range t.pending {
		if p.handle == h {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return
		}
	}
	// 同一帧内已出队但尚未执行的回调
	for i := range t.running {
		if t.running[i].handle == h {
			t.running[i].cb = nil
			return
		}
	}
}

// Flush 执行当前已注册的全部回调，返回执行数量
func (t *TickTimer) Flush() int {
	if len(t.pending) == 0 {
		return 0
	}
	t.running, t.pending = t.pending, t.running[:0]
	n := 0
	for i := range t.running {
		cb := t.running[i].cb
		if cb == nil {
			continue
		}
		t.running[i].cb = nil
		cb()
		n++
	}
	t.running = t.running[:0]
	return n
}

// Pending 返回等待执行的回调数量
func (t *TickTimer) Pending() int {
	return len(t.pending)
}
