package entity

import (
	"time"

	"syncarena/replica"
	"syncarena/wire"
)

// Resolver 按注册表 ID 查找实体，*replica.Registry 即满足
type Resolver interface {
	Get(id replica.ID) (replica.Syncable, bool)
}

// Traits 交互的同步方式
type Traits struct {
	// 交互后状态需要同步给所有客户端
	RequiresSyncing bool
	// 交互需要经由服务端广播
	Public bool
}

// Interactable 世界中可交互的静态对象。
// Interact 返回状态发生变化的对象（包括被连带触发的）。
type Interactable interface {
	replica.Static
	Interact(world Resolver, trigger replica.ID, t wire.InteractionType) []Interactable
	Traits() Traits
}

// Fixture 静态对象的公共部分
type Fixture struct {
	replica.Base
	Name string
	Pos  wire.Vec3
}

func (f *Fixture) Position() wire.Vec3 { return f.Pos }

// Door 激活时开关
type Door struct {
	Fixture
	Open bool
}

func (d *Door) Kind() replica.Kind { return replica.KindDoor }

func (d *Door) Policy() replica.Policy { return replica.Policy{TickInterval: 10} }

func (d *Door) Traits() Traits { return Traits{RequiresSyncing: true, Public: true} }

func (d *Door) Interact(_ Resolver, _ replica.ID, t wire.InteractionType) []Interactable {
	if t != wire.InteractActivate {
		return nil
	}
	d.Open = !d.Open
	return []Interactable{d}
}

func (d *Door) Serialize(w *wire.Writer) { w.WriteBool(d.Open) }

func (d *Door) Deserialize(r *wire.Reader) error {
	open := r.ReadBool()
	if err := r.Err(); err != nil {
		return err
	}
	d.Open = open
	return nil
}

// Button 只作为触发器，按下时激活 Triggers 中的对象（注册表 ID）
type Button struct {
	Fixture
	Triggers []replica.ID

	Presses int64
}

func (b *Button) Kind() replica.Kind { return replica.KindButton }

func (b *Button) Policy() replica.Policy { return replica.Policy{TickInterval: 1000} }

func (b *Button) Traits() Traits { return Traits{RequiresSyncing: false, Public: true} }

func (b *Button) Interact(world Resolver, _ replica.ID, t wire.InteractionType) []Interactable {
	if t != wire.InteractActivate {
		return nil
	}
	b.Presses++
	var changed []Interactable
	for _, id := range b.Triggers {
		e, ok := world.Get(id)
		if !ok {
			continue
		}
		// 按钮之间不级联，避免环
		target, ok := e.(Interactable)
		if _, isButton := e.(*Button); !ok || isButton {
			continue
		}
		changed = append(changed, target.Interact(world, b.ID(), wire.InteractActivate)...)
	}
	return changed
}

// Computer 根据触发它的按键在屏幕上显示文字
type Computer struct {
	Fixture
	KeyLeft  replica.ID
	KeyRight replica.ID
	Hologram replica.ID

	Text string
}

const (
	textPressedLeft  = "\n   Pressed left!"
	textPressedRight = "\n   Pressed right!"
)

func (c *Computer) Kind() replica.Kind { return replica.KindComputer }

func (c *Computer) Policy() replica.Policy {
	return replica.Policy{RequireChecksum: true, TickInterval: 10}
}

func (c *Computer) Traits() Traits { return Traits{RequiresSyncing: true, Public: true} }

func (c *Computer) Interact(world Resolver, trigger replica.ID, t wire.InteractionType) []Interactable {
	if t != wire.InteractActivate {
		return nil
	}
	visible := true
	switch {
	case trigger != replica.NoID && trigger == c.KeyLeft:
		c.Text = textPressedLeft
	case trigger != replica.NoID && trigger == c.KeyRight:
		c.Text = textPressedRight
	default:
		c.Text = ""
		visible = false
	}
	changed := []Interactable{c}
	if e, ok := world.Get(c.Hologram); ok {
		if h, ok := e.(*Hologram); ok && h.Visible != visible {
			h.Visible = visible
			changed = append(changed, h)
		}
	}
	return changed
}

func (c *Computer) Serialize(w *wire.Writer) { w.WriteString(c.Text) }

func (c *Computer) Deserialize(r *wire.Reader) error {
	text := r.ReadString()
	if err := r.Err(); err != nil {
		return err
	}
	c.Text = text
	return nil
}

// Checksum 屏幕文字的多项式哈希；空屏为 0
func (c *Computer) Checksum() int32 {
	var h int32
	for i := 0; i < len(c.Text); i++ {
		h = h*31 + int32(c.Text[i])
	}
	return h
}

// BlinkyBox 激活时闪烁一次，同步时只接受更新的闪烁时间
type BlinkyBox struct {
	Fixture
	BlinkTime float64

	now func() time.Time
}

func (b *BlinkyBox) Kind() replica.Kind { return replica.KindBlinkyBox }

func (b *BlinkyBox) Policy() replica.Policy { return replica.Policy{TickInterval: 5} }

func (b *BlinkyBox) Traits() Traits { return Traits{RequiresSyncing: true, Public: true} }

func (b *BlinkyBox) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

func (b *BlinkyBox) Interact(_ Resolver, _ replica.ID, t wire.InteractionType) []Interactable {
	if t != wire.InteractActivate {
		return nil
	}
	b.BlinkTime = float64(b.clock().UnixNano()) / 1e9
	return []Interactable{b}
}

func (b *BlinkyBox) Serialize(w *wire.Writer) { w.WriteFloat64(b.BlinkTime) }

func (b *BlinkyBox) Deserialize(r *wire.Reader) error {
	t := r.ReadFloat64()
	if err := r.Err(); err != nil {
		return err
	}
	if t > b.BlinkTime {
		b.BlinkTime = t
	}
	return nil
}

// Hologram 激活时切换可见性，交互仅在本地生效
type Hologram struct {
	Fixture
	Visible bool
}

func (h *Hologram) Kind() replica.Kind { return replica.KindHologram }

func (h *Hologram) Policy() replica.Policy { return replica.Policy{TickInterval: 10} }

func (h *Hologram) Traits() Traits { return Traits{} }

func (h *Hologram) Interact(_ Resolver, _ replica.ID, t wire.InteractionType) []Interactable {
	if t != wire.InteractActivate {
		return nil
	}
	h.Visible = !h.Visible
	return []Interactable{h}
}

func (h *Hologram) Serialize(w *wire.Writer) { w.WriteBool(h.Visible) }

func (h *Hologram) Deserialize(r *wire.Reader) error {
	v := r.ReadBool()
	if err := r.Err(); err != nil {
		return err
	}
	h.Visible = v
	return nil
}
