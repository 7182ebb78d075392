package replica

// Policy 每种实体的同步规则。
// RequireChecksum=true：变化缓慢、事件驱动的状态，仅在被标脏时发送，但每个周期都附带校验和；
// RequireChecksum=false：持续变化的状态，每个周期无条件发送。
type Policy struct {
	RequireChecksum bool
	TickInterval    int
}

// Due 该策略在第 tick 个 Tick 是否到期
func (p Policy) Due(tick int32) bool {
	return int64(tick)%int64(p.interval()) == 0
}

func (p Policy) interval() int {
	if p.TickInterval <= 0 {
		return 1
	}
	return p.TickInterval
}

// normalized 非正间隔按 1 处理
func (p Policy) normalized() Policy {
	p.TickInterval = p.interval()
	return p
}
