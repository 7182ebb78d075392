package replica

import (
	"math"
	"time"
)

// Tickable 由调度器按固定间隔驱动的行为（服务端、客户端复制器各一个实现）
type Tickable interface {
	PerformTick(tick int32)
}

// Scheduler 固定步长累加器。宿主循环每次轮询时调用 Advance 传入经过的时间，
// 累计满一个间隔就执行一次 PerformTick。累加值初始化为一个间隔，首次轮询即触发。
type Scheduler struct {
	interval time.Duration
	since    time.Duration
	tick     int32
	catchUp  int
	target   Tickable
}

// NewScheduler catchUp 为单次轮询最多补发的 Tick 数，< 1 按 1 处理
func NewScheduler(interval time.Duration, catchUp int, target Tickable) *Scheduler {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if catchUp < 1 {
		catchUp = 1
	}
	return &Scheduler{
		interval: interval,
		since:    interval,
		catchUp:  catchUp,
		target:   target,
	}
}

// Interval Tick 间隔
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Tick 下一次将传给 PerformTick 的编号
func (s *Scheduler) Tick() int32 { return s.tick }

// Advance 累加 elapsed 并执行到期的 Tick，返回本次执行的次数
func (s *Scheduler) Advance(elapsed time.Duration) int {
	if elapsed > 0 {
		s.since += elapsed
	}
	fired := 0
	for fired < s.catchUp && s.since >= s.interval {
		s.target.PerformTick(s.tick)
		if s.tick == math.MaxInt32 {
			s.tick = 0
		} else {
			s.tick++
		}
		s.since -= s.interval
		fired++
	}
	return fired
}

// Sequence 出站包的单调序列号，与 Tick 编号相互独立
type Sequence struct {
	next int32
}

// Next 返回当前序列号并前进
func (s *Sequence) Next() int32 {
	id := s.next
	s.next++
	return id
}
