package app

// Playback 查看器的播放时钟（拍）
type Playback struct {
	Time   float64
	Total  float64
	Speed  float64 // 拍/秒
	Paused bool
	Loop   bool
	// Loops 回绕计数，每次从结尾回到开头加一
	Loops int
}

// Advance 前进 dt 秒，返回是否发生了回绕
func (p *Playback) Advance(dt float64) bool {
	if p.Paused || p.Total <= 0 || dt <= 0 {
		return false
	}
	p.Time += p.Speed * dt
	if p.Time < p.Total {
		return false
	}
	if !p.Loop {
		p.Time = p.Total
		p.Paused = true
		return false
	}
	for p.Time >= p.Total {
		p.Time -= p.Total
	}
	p.Loops++
	return true
}

// Scrub 手动移动播放位置，结果限制在 [0, Total]
func (p *Playback) Scrub(delta float64) {
	p.Time += delta
	if p.Time < 0 {
		p.Time = 0
	}
	if p.Time > p.Total {
		p.Time = p.Total
	}
}

// Restart 手动回到开头，与自然回绕一样计数
func (p *Playback) Restart() {
	if p.Time > 0 {
		p.Loops++
	}
	p.Time = 0
}

// Reset 切换序列时回到开头
func (p *Playback) Reset(total float64) {
	p.Time = 0
	p.Total = total
}
