package systems

import (
	"math"

	"github.com/decker502/seqanim/pkg/pathcache"
	"github.com/decker502/seqanim/pkg/trail"
	"github.com/decker502/seqanim/pkg/types"
	"github.com/decker502/seqanim/pkg/utils"
)

// PropEnds 返回道具两端的网格坐标
// 朝向 0 度指向上方（N），顺时针增加
func PropEnds(p pathcache.Pose, halfLength float64) (primary, secondary [2]float64) {
	rad := p.Rotation * math.Pi / 180
	dx, dy := math.Sin(rad)*halfLength, -math.Cos(rad)*halfLength
	primary = [2]float64{p.X + dx, p.Y + dy}
	secondary = [2]float64{p.X - dx, p.Y - dy}
	return primary, secondary
}

// RecordPose 将对象当前姿态的端点写入轨迹缓冲区
// ends 为 1 时只记录主端点
func RecordPose(buf *trail.Buffer, mapper *utils.GridMapper, obj types.ObjectID, ends int,
	p pathcache.Pose, halfLength, timestampMs float64) {
	if buf == nil || mapper == nil {
		return
	}
	primary, secondary := PropEnds(p, halfLength)
	x, y := mapper.ToPixel(primary[0], primary[1])
	buf.Record(obj, types.EndPrimary, x, y, timestampMs)
	if ends >= 2 {
		x, y = mapper.ToPixel(secondary[0], secondary[1])
		buf.Record(obj, types.EndSecondary, x, y, timestampMs)
	}
}
