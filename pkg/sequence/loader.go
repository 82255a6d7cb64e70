package sequence

import (
	"fmt"
	"os"

	"github.com/decker502/seqanim/pkg/types"
	"gopkg.in/yaml.v3"
)

// fileMotion YAML 中单个对象的运动描述
type fileMotion struct {
	Type      string  `yaml:"type"`
	Start     string  `yaml:"start"`
	End       string  `yaml:"end"`
	StartRot  float64 `yaml:"startRot"`
	EndRot    float64 `yaml:"endRot"`
	Direction string  `yaml:"direction"`
	Turns     float64 `yaml:"turns"`
}

// fileBeat YAML 中的节拍
type fileBeat struct {
	Letter   string     `yaml:"letter"`
	Duration *float64   `yaml:"duration"` // nil 表示默认 1 拍
	Blue     fileMotion `yaml:"blue"`
	Red      fileMotion `yaml:"red"`
}

// fileSequence 序列文件的顶层结构
//
// 示例：
//
//	id: demo-001
//	name: Demo
//	objects:
//	  blue: staff
//	  red: club
//	trackedEnds:
//	  blue: 2
//	start:
//	  blue: {type: static, start: s, end: s}
//	  red:  {type: static, start: n, end: n}
//	beats:
//	  - letter: A
//	    blue: {type: rotational, start: s, end: w, direction: cw}
type fileSequence struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Objects     map[string]string `yaml:"objects"`
	TrackedEnds map[string]int    `yaml:"trackedEnds"`
	Start       fileBeat          `yaml:"start"`
	Beats       []fileBeat        `yaml:"beats"`
}

// Load 从 YAML 文件加载序列
func Load(path string) (*Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sequence file %s: %w", path, err)
	}
	seq, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sequence file %s: %w", path, err)
	}
	return seq, nil
}

// Parse 解析 YAML 序列数据
func Parse(data []byte) (*Sequence, error) {
	var f fileSequence
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sequence: %w", err)
	}

	seq := &Sequence{
		ID:            f.ID,
		Name:          f.Name,
		StartPosition: f.Start.toBeat(0),
		Beats:         make([]Beat, 0, len(f.Beats)),
		ObjectTypes:   make(map[types.ObjectID]string),
		TrackedEnds:   make(map[types.ObjectID]int),
	}
	for _, b := range f.Beats {
		seq.Beats = append(seq.Beats, b.toBeat(1))
	}
	for name, typ := range f.Objects {
		obj, err := parseObject(name)
		if err != nil {
			return nil, err
		}
		seq.ObjectTypes[obj] = typ
	}
	for name, n := range f.TrackedEnds {
		obj, err := parseObject(name)
		if err != nil {
			return nil, err
		}
		seq.TrackedEnds[obj] = n
	}

	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return seq, nil
}

func parseObject(name string) (types.ObjectID, error) {
	switch name {
	case "blue":
		return types.Blue, nil
	case "red":
		return types.Red, nil
	default:
		return 0, fmt.Errorf("%w: unknown object %q", ErrInvalidSequence, name)
	}
}

func (b fileBeat) toBeat(defaultDuration float64) Beat {
	duration := defaultDuration
	if b.Duration != nil {
		duration = *b.Duration
	}
	return Beat{
		Letter:   b.Letter,
		Duration: duration,
		Blue:     b.Blue.toMotion(),
		Red:      b.Red.toMotion(),
	}
}

func (m fileMotion) toMotion() Motion {
	return Motion{
		Type:      types.ParseMotionType(m.Type),
		StartLoc:  types.ParseLocation(m.Start),
		EndLoc:    types.ParseLocation(m.End),
		StartRot:  m.StartRot,
		EndRot:    m.EndRot,
		Direction: types.ParseRotationDirection(m.Direction),
		Turns:     m.Turns,
	}
}
