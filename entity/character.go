package entity

import (
	"syncarena/replica"
	"syncarena/wire"
)

const (
	DefaultMovementSpeed       float32 = 5
	DefaultInteractionDistance float32 = 2

	// 本地角色漂移超过 MovementSpeed*snapFactor 才硬纠正
	snapFactor float32 = 0.5
	// 远端角色漂移超过该值开始平滑插值
	smoothThreshold float32 = 0.1
	// 每秒插值比例
	smoothRate float32 = 10
)

// Character 玩家角色：服务端权威位置，客户端只上报意图。
// 位置积分用 Step 的简单运动学代替物理引擎。
type Character struct {
	replica.Base

	MovementSpeed       float32
	InteractionDistance float32

	pos  wire.Vec3
	move wire.Vec3
	rot  wire.Vec3

	// 客户端：是否为本机控制的角色
	local bool

	serverPos wire.Vec3
	smoothing bool
}

// NewCharacter 使用默认移动速度与交互距离
func NewCharacter(pos wire.Vec3) *Character {
	return &Character{
		MovementSpeed:       DefaultMovementSpeed,
		InteractionDistance: DefaultInteractionDistance,
		pos:                 pos,
		serverPos:           pos,
	}
}

func (c *Character) Kind() replica.Kind { return replica.KindCharacter }

func (c *Character) Policy() replica.Policy {
	return replica.Policy{RequireChecksum: false, TickInterval: 1}
}

// Move 设置移动方向（单位化）
func (c *Character) Move(direction wire.Vec3) {
	if direction != c.move {
		c.move = direction.Normalized()
	}
}

func (c *Character) Stop() { c.move = wire.Vec3{} }

func (c *Character) Moving() bool { return !c.move.IsZero() }

func (c *Character) MoveDirection() wire.Vec3 { return c.move }

// SetRotation 欧拉角：X/Z 为头部，Y 为身体
func (c *Character) SetRotation(rotation wire.Vec3) { c.rot = rotation }

func (c *Character) Rotation() wire.Vec3 { return c.rot }

func (c *Character) Position() wire.Vec3 { return c.pos }

func (c *Character) SetPosition(pos wire.Vec3) { c.pos = pos }

func (c *Character) SetLocal(local bool) { c.local = local }

func (c *Character) Local() bool { return c.local }

// Smoothing 是否正在向服务端位置插值
func (c *Character) Smoothing() bool { return c.smoothing }

func (c *Character) ServerPosition() wire.Vec3 { return c.serverPos }

// Intent 供 ClientReplicator 读取
func (c *Character) Intent() (move, rotation wire.Vec3, ok bool) {
	return c.move, c.rot, true
}

// Step 固定步长推进位置
func (c *Character) Step(dt float32) {
	if !c.Moving() {
		return
	}
	c.pos = c.pos.Add(c.move.Scale(c.MovementSpeed * dt))
}

// Update 每帧向服务端位置插值，漂移回落到阈值以内时停止
func (c *Character) Update(dt float32) {
	if !c.smoothing {
		return
	}
	c.pos = c.pos.Lerp(c.serverPos, smoothRate*dt)
	if c.serverPos.Sub(c.pos).Length() < smoothThreshold {
		c.smoothing = false
	}
}

func (c *Character) Serialize(w *wire.Writer) {
	w.WriteVec3(c.pos)
	w.WriteVec3(c.move)
	w.WriteVec3(c.rot)
}

func (c *Character) Deserialize(r *wire.Reader) error {
	serverPos := r.ReadVec3()
	serverMove := r.ReadVec3()
	serverRot := r.ReadVec3()
	if err := r.Err(); err != nil {
		return err
	}
	c.serverPos = serverPos
	drift := serverPos.Sub(c.pos).Length()

	if c.local {
		if drift > c.MovementSpeed*snapFactor {
			c.pos = serverPos
			c.move = serverMove
		}
		c.smoothing = false
		return nil
	}

	c.rot = serverRot
	c.move = serverMove
	c.smoothing = drift > smoothThreshold
	return nil
}

// InReach 目标是否在交互距离内（服务端额外容忍半个 tick 的移动量）
func (c *Character) InReach(target wire.Vec3) bool {
	limit := c.InteractionDistance + c.MovementSpeed*snapFactor
	return target.Sub(c.pos).Length() <= limit
}
