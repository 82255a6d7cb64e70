// Package types 定义共享的基础类型
// 这个包不依赖任何其他业务包，用于解决循环引用问题
package types

// ObjectID 标识序列中被追踪的两个对象之一
type ObjectID int

const (
	// Blue 蓝色对象
	Blue ObjectID = iota
	// Red 红色对象
	Red
)

// ObjectCount 每个节拍中被追踪对象的数量（固定为 2）
const ObjectCount = 2

// Objects 按绘制顺序列出全部对象（蓝色在下，红色在上）
var Objects = [ObjectCount]ObjectID{Blue, Red}

// String 返回对象的字符串表示
func (o ObjectID) String() string {
	switch o {
	case Blue:
		return "blue"
	case Red:
		return "red"
	default:
		return "unknown"
	}
}

// Valid 判断对象 ID 是否合法
func (o ObjectID) Valid() bool {
	return o == Blue || o == Red
}

// EndID 标识对象的一端
// 双端追踪的对象（例如长杆类道具）两端各自记录轨迹
type EndID int

const (
	// EndPrimary 主端（单端追踪时唯一使用的一端）
	EndPrimary EndID = iota
	// EndSecondary 副端
	EndSecondary
)

// MaxEnds 单个对象最多可追踪的端点数量
const MaxEnds = 2

// String 返回端点的字符串表示
func (e EndID) String() string {
	switch e {
	case EndPrimary:
		return "primary"
	case EndSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}
