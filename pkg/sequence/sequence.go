// Package sequence 定义编舞序列的数据模型
//
// 序列由起始位置（第 0 拍）和有序的节拍列表组成。每个节拍描述两个被追踪对象
// （蓝色、红色）各自的起止位置、运动类型和旋转方向。
//
// 序列数据由外部提供，引擎只读使用。序列的 ID 是唯一的缓存失效信号：
// ID 不变即视为内容不变。
package sequence

import (
	"errors"

	"github.com/decker502/seqanim/pkg/types"
)

// ErrInvalidSequence 序列结构无效（缺少 ID 等）
var ErrInvalidSequence = errors.New("invalid sequence")

// Motion 描述单个对象在一拍内的运动
type Motion struct {
	Type      types.MotionType
	StartLoc  types.Location
	EndLoc    types.Location
	StartRot  float64 // 起始朝向（度）
	EndRot    float64 // 结束朝向（度）
	Direction types.RotationDirection
	Turns     float64 // 额外的整圈数，沿声明方向叠加
}

// Beat 一条编舞指令，同时描述两个对象
type Beat struct {
	Letter   string  // 叠加层显示的标签
	Duration float64 // 持续拍数，0 表示瞬时
	Blue     Motion
	Red      Motion
}

// Motion 返回指定对象的运动
func (b *Beat) Motion(obj types.ObjectID) Motion {
	if obj == types.Red {
		return b.Red
	}
	return b.Blue
}

// Sequence 有序节拍列表加起始位置
type Sequence struct {
	ID            string
	Name          string
	StartPosition Beat
	Beats         []Beat

	// ObjectTypes 对象外观类型（决定纹理）
	ObjectTypes map[types.ObjectID]string
	// TrackedEnds 每个对象追踪的端点数（1 或 2），缺省时由配置决定
	TrackedEnds map[types.ObjectID]int
}

// Len 返回节拍数量（不含起始位置）
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Beats)
}

// BeatAt 按缓存索引返回节拍：0 为起始位置，1..N 为节拍
func (s *Sequence) BeatAt(index int) *Beat {
	if index <= 0 {
		return &s.StartPosition
	}
	if index > len(s.Beats) {
		return nil
	}
	return &s.Beats[index-1]
}

// ObjectType 返回对象外观类型，未设置时返回空字符串
func (s *Sequence) ObjectType(obj types.ObjectID) string {
	if s == nil || s.ObjectTypes == nil {
		return ""
	}
	return s.ObjectTypes[obj]
}

// EndsFor 返回对象追踪的端点数
// 序列未声明时返回 fallback；结果被限制在 1..MaxEnds
func (s *Sequence) EndsFor(obj types.ObjectID, fallback int) int {
	n := fallback
	if s != nil && s.TrackedEnds != nil {
		if v, ok := s.TrackedEnds[obj]; ok {
			n = v
		}
	}
	if n < 1 {
		return 1
	}
	if n > types.MaxEnds {
		return types.MaxEnds
	}
	return n
}

// Validate 检查序列的结构性错误
// 单个节拍的几何退化不算结构错误，由路径缓存降级处理
func (s *Sequence) Validate() error {
	if s == nil {
		return ErrInvalidSequence
	}
	if s.ID == "" {
		return errors.Join(ErrInvalidSequence, errors.New("missing id"))
	}
	return nil
}
