// Package pathcache 将离散的节拍序列转换为连续的、按时间参数化的运动路径
//
// 每个 (序列 ID, 节拍索引, 对象) 对应一条 MotionPath。MotionPath 是纯函数：
// 同样的输入总是得到逐位相同的输出，这是预渲染与实时渲染像素一致的前提。
//
// 端点约束：Position(0) 精确等于节拍起始姿态，Position(1) 精确等于结束姿态。
package pathcache

import (
	"fmt"

	"github.com/decker502/seqanim/pkg/sequence"
	"github.com/decker502/seqanim/pkg/types"
	"github.com/decker502/seqanim/pkg/utils"
)

// Pose 对象在某一时刻的姿态（网格坐标 + 朝向角度）
type Pose struct {
	X        float64
	Y        float64
	Rotation float64 // 度
}

// MotionPath 单个对象在单个节拍内的连续路径
type MotionPath struct {
	kind     types.MotionType
	start    Pose
	end      Pose
	duration float64
	easing   utils.EasingFunc
	fallback bool

	rotDelta float64

	// 弧线运动的极坐标参数
	startAngle  float64
	angleDelta  float64
	startRadius float64
	endRadius   float64
}

// staticPath 构造在给定姿态上保持不动的路径
func staticPath(p Pose, fallback bool) *MotionPath {
	return &MotionPath{
		kind:     types.MotionStatic,
		start:    p,
		end:      p,
		duration: 0,
		easing:   utils.EaseLinear,
		fallback: fallback,
	}
}

// Position 返回 t ∈ [0,1] 时的姿态
//
// t <= 0 精确返回起始姿态；t >= 1、NaN 或零时长节拍精确返回结束姿态。
func (p *MotionPath) Position(t float64) Pose {
	if p.duration == 0 || t >= 1 || t != t {
		return p.end
	}
	if t <= 0 {
		return p.start
	}

	e := p.easing(t)
	pose := Pose{Rotation: p.start.Rotation + p.rotDelta*e}

	switch p.kind {
	case types.MotionLinear:
		pose.X = utils.Lerp(p.start.X, p.end.X, e)
		pose.Y = utils.Lerp(p.start.Y, p.end.Y, e)
	case types.MotionRotational:
		angle := p.startAngle + p.angleDelta*e
		radius := utils.Lerp(p.startRadius, p.endRadius, e)
		pose.X, pose.Y = utils.FromPolarDegrees(angle, radius)
	default:
		pose.X = p.start.X
		pose.Y = p.start.Y
	}
	return pose
}

// Start 返回起始姿态
func (p *MotionPath) Start() Pose { return p.start }

// End 返回结束姿态
func (p *MotionPath) End() Pose { return p.end }

// Kind 返回运动类型
func (p *MotionPath) Kind() types.MotionType { return p.kind }

// Duration 返回节拍时长（拍）
func (p *MotionPath) Duration() float64 { return p.duration }

// RotationDelta 返回整个节拍内朝向的有符号变化量
func (p *MotionPath) RotationDelta() float64 { return p.rotDelta }

// IsFallback 路径是否为退化数据的静态替代
func (p *MotionPath) IsFallback() bool { return p.fallback }

// buildPath 根据运动描述构造路径
// 数据退化时返回错误，由调用方替换为静态路径
func buildPath(m sequence.Motion, duration float64, easing utils.EasingFunc) (*MotionPath, error) {
	if !utils.IsFinite(duration) || duration < 0 {
		return nil, fmt.Errorf("invalid duration %v", duration)
	}
	if !utils.IsFinite(m.StartRot) || !utils.IsFinite(m.EndRot) {
		return nil, fmt.Errorf("non-finite rotation (%v → %v)", m.StartRot, m.EndRot)
	}
	if !utils.IsFinite(m.Turns) || m.Turns < 0 {
		return nil, fmt.Errorf("invalid turns %v", m.Turns)
	}

	sx, sy, ok := m.StartLoc.Coords()
	if !ok {
		return nil, fmt.Errorf("unknown start location %d", m.StartLoc)
	}
	ex, ey, ok := m.EndLoc.Coords()
	if !ok {
		return nil, fmt.Errorf("unknown end location %d", m.EndLoc)
	}

	p := &MotionPath{
		kind:     m.Type,
		start:    Pose{X: sx, Y: sy, Rotation: m.StartRot},
		end:      Pose{X: ex, Y: ey, Rotation: m.EndRot},
		duration: duration,
		easing:   easing,
	}

	sign := m.Direction.Sign()

	switch m.Type {
	case types.MotionStatic:
		if m.StartLoc != m.EndLoc {
			return nil, fmt.Errorf("static motion with differing locations (%s → %s)", m.StartLoc, m.EndLoc)
		}
		p.rotDelta = rotationDelta(m, sign, false)
	case types.MotionLinear:
		p.rotDelta = rotationDelta(m, sign, false)
	case types.MotionRotational:
		p.rotDelta = rotationDelta(m, sign, true)
		p.startAngle, p.startRadius = utils.PolarDegrees(sx, sy)
		endAngle, endRadius := utils.PolarDegrees(ex, ey)
		p.endRadius = endRadius
		switch {
		case p.startRadius == 0 && p.endRadius == 0:
			p.angleDelta = 0
		case p.startRadius == 0:
			p.startAngle = endAngle
		case p.endRadius == 0:
			// 终点在中心：角度保持不变，只收缩半径
		default:
			p.angleDelta = utils.DirectedArc(p.startAngle, endAngle, sign, true)
		}
	default:
		return nil, fmt.Errorf("unknown motion type %d", m.Type)
	}

	return p, nil
}

// rotationDelta 计算朝向变化量
// 声明了方向时沿声明方向扫过（即使反向更短），并叠加额外整圈；
// 未声明方向时取最短弧。
func rotationDelta(m sequence.Motion, sign float64, fullTurnWhenEqual bool) float64 {
	if sign == 0 {
		return utils.ShortestArc(m.StartRot, m.EndRot)
	}
	return utils.DirectedArc(m.StartRot, m.EndRot, sign, fullTurnWhenEqual) + sign*360*m.Turns
}
