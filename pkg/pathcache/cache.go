package pathcache

import (
	"log"
	"sort"

	"github.com/decker502/seqanim/pkg/sequence"
	"github.com/decker502/seqanim/pkg/types"
	"github.com/decker502/seqanim/pkg/utils"
)

// Warning 退化节拍的非致命警告
type Warning struct {
	BeatIndex int
	Object    types.ObjectID
	Reason    string
}

// Cache 序列 ID → 有序路径列表的缓存
//
// 生命周期：
//   - 首次访问新序列时惰性构建（O(节拍数)）
//   - 序列 ID 变化时整体丢弃，不做增量修补
//   - 组件销毁时调用 Dispose 显式释放
//
// 查询为 O(1)，时间定位为 O(log 节拍数)。
// 非线程安全：只在单线程渲染路径上访问。
type Cache struct {
	easing utils.EasingFunc

	identity string
	built    bool
	paths    [][types.ObjectCount]*MotionPath // 0 为起始位置，1..N 为节拍
	ends     []float64                        // 每个索引的累计结束时间（拍）
	total    float64
	warnings []Warning
	builds   int
}

// Option 缓存选项
type Option func(*Cache)

// WithEasing 设置节拍内的缓动曲线
func WithEasing(fn utils.EasingFunc) Option {
	return func(c *Cache) {
		if fn != nil {
			c.easing = fn
		}
	}
}

// New 创建路径缓存
func New(opts ...Option) *Cache {
	c := &Cache{easing: utils.EaseLinear}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var emptyPath = staticPath(Pose{}, true)

// Path 返回指定节拍、指定对象的路径
// beatIndex 0 为起始位置，超出范围时限制在 [0, N]
func (c *Cache) Path(seq *sequence.Sequence, beatIndex int, obj types.ObjectID) *MotionPath {
	if !c.ensure(seq) || !obj.Valid() {
		return emptyPath
	}
	if beatIndex < 0 {
		beatIndex = 0
	}
	if beatIndex >= len(c.paths) {
		beatIndex = len(c.paths) - 1
	}
	return c.paths[beatIndex][obj]
}

// Locate 将播放时间（拍）定位到节拍索引与节拍内进度
//
// 零时长节拍永远不会成为"当前"节拍；时间超过总时长时返回最后一拍的终点。
func (c *Cache) Locate(seq *sequence.Sequence, time float64) (beatIndex int, t float64) {
	if !c.ensure(seq) {
		return 0, 1
	}
	n := len(c.paths) - 1
	if n == 0 {
		return 0, 1
	}
	if time != time || time < 0 {
		time = 0
	}
	if time >= c.total {
		return n, 1
	}

	// 第一个结束时间晚于 time 的节拍
	i := sort.Search(n, func(k int) bool { return c.ends[k+1] > time }) + 1
	start := c.ends[i-1]
	d := c.ends[i] - start
	return i, (time - start) / d
}

// Sample 返回播放时间处对象的姿态
func (c *Cache) Sample(seq *sequence.Sequence, time float64, obj types.ObjectID) Pose {
	i, t := c.Locate(seq, time)
	return c.Path(seq, i, obj).Position(t)
}

// TimeAt 将整体进度 [0,1] 转换为播放时间（拍）
func (c *Cache) TimeAt(seq *sequence.Sequence, progress float64) float64 {
	if !c.ensure(seq) {
		return 0
	}
	return utils.Clamp01(progress) * c.total
}

// TotalDuration 返回序列总时长（拍）
func (c *Cache) TotalDuration(seq *sequence.Sequence) float64 {
	if !c.ensure(seq) {
		return 0
	}
	return c.total
}

// Warnings 返回当前序列构建时产生的警告
func (c *Cache) Warnings() []Warning {
	return c.warnings
}

// Identity 返回当前缓存的序列 ID（未构建时为空）
func (c *Cache) Identity() string {
	return c.identity
}

// Builds 返回累计构建次数
func (c *Cache) Builds() int {
	return c.builds
}

// Dispose 丢弃全部缓存内容
func (c *Cache) Dispose() {
	c.identity = ""
	c.built = false
	c.paths = nil
	c.ends = nil
	c.total = 0
	c.warnings = nil
}

// ensure 确保缓存对应 seq 的身份，必要时整体重建
func (c *Cache) ensure(seq *sequence.Sequence) bool {
	if seq == nil {
		return false
	}
	if c.built && c.identity == seq.ID {
		return true
	}
	c.build(seq)
	return true
}

func (c *Cache) build(seq *sequence.Sequence) {
	c.Dispose()
	c.identity = seq.ID
	c.built = true
	c.builds++

	n := len(seq.Beats)
	c.paths = make([][types.ObjectCount]*MotionPath, n+1)
	c.ends = make([]float64, n+1)

	var lastGood [types.ObjectCount]Pose
	for i := 0; i <= n; i++ {
		beat := seq.BeatAt(i)
		duration := beat.Duration
		if i == 0 {
			duration = 0
		}

		for _, obj := range types.Objects {
			path, err := buildPath(beat.Motion(obj), duration, c.easing)
			if err != nil {
				c.warnings = append(c.warnings, Warning{BeatIndex: i, Object: obj, Reason: err.Error()})
				log.Printf("[PathCache] Warning: sequence %s beat %d (%s): %v, using static fallback",
					seq.ID, i, obj, err)
				path = staticPath(lastGood[obj], true)
			}
			c.paths[i][obj] = path
			lastGood[obj] = path.End()
		}

		if i > 0 {
			d := duration
			if !utils.IsFinite(d) || d < 0 {
				d = 0
			}
			c.ends[i] = c.ends[i-1] + d
		}
	}
	c.total = c.ends[n]
}
