package systems

import (
	"github.com/decker502/seqanim/pkg/pathcache"
	"github.com/decker502/seqanim/pkg/render"
	"github.com/decker502/seqanim/pkg/sequence"
	"github.com/decker502/seqanim/pkg/settings"
	"github.com/decker502/seqanim/pkg/trail"
	"github.com/decker502/seqanim/pkg/types"
	"github.com/decker502/seqanim/pkg/utils"
)

// ObjectDraw 单个对象的绘制数据
type ObjectDraw struct {
	Visible bool
	Pose    pathcache.Pose // 网格坐标
	X, Y    float64        // 像素坐标
	Texture render.Texture // nil 时绘制占位图形
}

// RenderRequest 一次绘制所需的全部数据
//
// 只在一次调度的绘制期间有效，不能跨帧持有。
type RenderRequest struct {
	Width, Height int
	Mapper        utils.GridMapper

	BeatIndex int
	Fraction  float64 // 节拍内进度
	Progress  float64 // 整体进度 0..1
	Label     string

	Flags       settings.Flags
	Objects     [types.ObjectCount]ObjectDraw
	Trails      [types.ObjectCount][]trail.Point
	TrailPolicy trail.Policy
	NowMs       float64

	Glyph render.Texture
}

// TextureAccessor 纹理访问器
// 纹理只在绘制期间通过访问器获取，不跨帧持有
type TextureAccessor interface {
	ObjectTexture(obj types.ObjectID) render.Texture
	GlyphTexture(label string) render.Texture
}

// FrameInput 构建请求的输入
type FrameInput struct {
	Sequence *sequence.Sequence
	Time     float64 // 播放时间（拍）
	Flags    settings.Flags
	Trails   *trail.Buffer
	NowMs    float64
}

// RequestBuilder 从路径缓存、轨迹快照、开关和纹理构建 RenderRequest
// 实时渲染与预渲染共用，保证两者绘制结果一致
//
// 内部复用一个请求对象，Build 返回的指针在下一次 Build 前有效。
type RequestBuilder struct {
	paths    *pathcache.Cache
	mapper   *utils.GridMapper
	textures TextureAccessor

	req RenderRequest
}

// NewRequestBuilder 创建构建器，textures 可为 nil
func NewRequestBuilder(paths *pathcache.Cache, mapper *utils.GridMapper, textures TextureAccessor) *RequestBuilder {
	return &RequestBuilder{paths: paths, mapper: mapper, textures: textures}
}

// Build 构建一次绘制请求
func (b *RequestBuilder) Build(in FrameInput) *RenderRequest {
	req := &b.req
	trails := req.Trails
	*req = RenderRequest{}
	for i := range trails {
		req.Trails[i] = trails[i][:0]
	}

	req.Width, req.Height = b.mapper.Size()
	req.Mapper = *b.mapper
	req.Flags = in.Flags
	req.NowMs = in.NowMs

	seq := in.Sequence
	if seq == nil {
		return req
	}

	idx, t := b.paths.Locate(seq, in.Time)
	req.BeatIndex = idx
	req.Fraction = t
	if total := b.paths.TotalDuration(seq); total > 0 {
		req.Progress = utils.Clamp01(in.Time / total)
	} else {
		req.Progress = 1
	}
	if beat := seq.BeatAt(idx); beat != nil {
		req.Label = beat.Letter
	}

	for _, obj := range types.Objects {
		pose := b.paths.Path(seq, idx, obj).Position(t)
		x, y := b.mapper.ToPixel(pose.X, pose.Y)
		od := ObjectDraw{
			Visible: in.Flags.ObjectVisible(obj),
			Pose:    pose,
			X:       x,
			Y:       y,
		}
		if od.Visible && b.textures != nil {
			od.Texture = b.textures.ObjectTexture(obj)
		}
		req.Objects[obj] = od

		if in.Trails != nil && in.Flags.Trails && od.Visible {
			req.Trails[obj] = in.Trails.AppendSnapshot(req.Trails[obj], obj, in.NowMs)
		}
	}
	if in.Trails != nil {
		req.TrailPolicy = in.Trails.Policy()
	}
	if in.Flags.Glyph && req.Label != "" && b.textures != nil {
		req.Glyph = b.textures.GlyphTexture(req.Label)
	}
	return req
}
