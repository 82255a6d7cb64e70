package utils

import (
	"math"
	"testing"
)

// TestEasingEndpoints 所有缓动函数必须满足 f(0)=0、f(1)=1
func TestEasingEndpoints(t *testing.T) {
	names := []string{"linear", "inoutcubic", "inoutquad", "inoutsine"}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			fn, ok := EasingByName(name)
			if !ok {
				t.Fatalf("EasingByName(%q) 未找到", name)
			}
			if got := fn(0); math.Abs(got) > 1e-12 {
				t.Errorf("%s(0) = %v, 期望 0", name, got)
			}
			if got := fn(1); math.Abs(got-1) > 1e-12 {
				t.Errorf("%s(1) = %v, 期望 1", name, got)
			}
		})
	}
}

// TestEasingMonotonic 缓动函数在 [0,1] 上单调不减
func TestEasingMonotonic(t *testing.T) {
	for _, fn := range []EasingFunc{EaseLinear, EaseInOutCubic, EaseInOutQuad, EaseInOutSine} {
		prev := fn(0)
		for p := 0.01; p <= 1.0; p += 0.01 {
			cur := fn(p)
			if cur < prev-1e-12 {
				t.Fatalf("缓动函数在 %v 处递减: %v < %v", p, cur, prev)
			}
			prev = cur
		}
	}
}

func TestEasingByNameUnknown(t *testing.T) {
	fn, ok := EasingByName("bounce")
	if ok {
		t.Error("未知名称应返回 false")
	}
	if fn(0.3) != 0.3 {
		t.Error("未知名称应回退为线性缓动")
	}
}

func TestLerp(t *testing.T) {
	tests := []struct {
		name     string
		a, b, t  float64
		expected float64
	}{
		{"起点", 10, 20, 0, 10},
		{"终点", 10, 20, 1, 20},
		{"中点", 10, 20, 0.5, 15},
		{"负方向", 20, 10, 0.25, 17.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Lerp(tt.a, tt.b, tt.t); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Lerp(%v, %v, %v) = %v, 期望 %v", tt.a, tt.b, tt.t, got, tt.expected)
			}
		})
	}
}

func TestClamp01(t *testing.T) {
	if Clamp01(-0.5) != 0 {
		t.Error("负数应被限制为 0")
	}
	if Clamp01(1.5) != 1 {
		t.Error("大于 1 应被限制为 1")
	}
	if Clamp01(math.NaN()) != 1 {
		t.Error("NaN 应视为 1")
	}
	if Clamp01(0.4) != 0.4 {
		t.Error("区间内的值应保持不变")
	}
}
