package entity

import (
	"errors"
	"fmt"

	"syncarena/replica"
	"syncarena/wire"
)

var ErrBadLayout = errors.New("entity: bad world layout")

// ObjectSpec 世界布局中的一个静态对象。引用其他对象时使用 Name。
type ObjectSpec struct {
	Name     string     `yaml:"name"`
	Kind     string     `yaml:"kind"`
	Position [3]float32 `yaml:"position"`

	Open     bool     `yaml:"open,omitempty"`
	Visible  bool     `yaml:"visible,omitempty"`
	Triggers []string `yaml:"triggers,omitempty"`
	KeyLeft  string   `yaml:"key_left,omitempty"`
	KeyRight string   `yaml:"key_right,omitempty"`
	Hologram string   `yaml:"hologram,omitempty"`
}

// World 静态对象集合。ID 分配之后调用 Link 把名字引用解析为 ID。
type World struct {
	specs   []ObjectSpec
	objects []Interactable
	byName  map[string]Interactable
}

// BuildWorld 按布局构造对象，尚未注册
func BuildWorld(specs []ObjectSpec) (*World, error) {
	w := &World{specs: specs, byName: make(map[string]Interactable, len(specs))}
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("object %d: empty name: %w", i, ErrBadLayout)
		}
		if _, dup := w.byName[spec.Name]; dup {
			return nil, fmt.Errorf("object %q: duplicate name: %w", spec.Name, ErrBadLayout)
		}
		kind, err := replica.ParseKind(spec.Kind)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", spec.Name, err)
		}
		fx := Fixture{Name: spec.Name, Pos: wire.Vec3{X: spec.Position[0], Y: spec.Position[1], Z: spec.Position[2]}}

		var obj Interactable
		switch kind {
		case replica.KindDoor:
			obj = &Door{Fixture: fx, Open: spec.Open}
		case replica.KindButton:
			obj = &Button{Fixture: fx}
		case replica.KindComputer:
			obj = &Computer{Fixture: fx, KeyLeft: replica.NoID, KeyRight: replica.NoID, Hologram: replica.NoID}
		case replica.KindBlinkyBox:
			obj = &BlinkyBox{Fixture: fx}
		case replica.KindHologram:
			obj = &Hologram{Fixture: fx, Visible: spec.Visible}
		default:
			return nil, fmt.Errorf("object %q: kind %s is not a static object: %w", spec.Name, kind, ErrBadLayout)
		}
		w.objects = append(w.objects, obj)
		w.byName[spec.Name] = obj
	}

	for _, spec := range specs {
		refs := append([]string{spec.KeyLeft, spec.KeyRight, spec.Hologram}, spec.Triggers...)
		for _, ref := range refs {
			if ref == "" {
				continue
			}
			if _, ok := w.byName[ref]; !ok {
				return nil, fmt.Errorf("object %q references unknown %q: %w", spec.Name, ref, ErrBadLayout)
			}
		}
	}
	return w, nil
}

// Statics 供 AssignStaticIDs 使用
func (w *World) Statics() []replica.Static {
	out := make([]replica.Static, len(w.objects))
	for i, o := range w.objects {
		out[i] = o
	}
	return out
}

func (w *World) Objects() []Interactable { return w.objects }

func (w *World) Lookup(name string) (Interactable, bool) {
	o, ok := w.byName[name]
	return o, ok
}

// Link 解析名字引用；未注册的对象解析为 NoID
func (w *World) Link() {
	id := func(name string) replica.ID {
		if o, ok := w.byName[name]; ok && name != "" {
			return o.ID()
		}
		return replica.NoID
	}
	for i, spec := range w.specs {
		switch o := w.objects[i].(type) {
		case *Button:
			o.Triggers = o.Triggers[:0]
			for _, name := range spec.Triggers {
				if tid := id(name); tid != replica.NoID {
					o.Triggers = append(o.Triggers, tid)
				}
			}
		case *Computer:
			o.KeyLeft = id(spec.KeyLeft)
			o.KeyRight = id(spec.KeyRight)
			o.Hologram = id(spec.Hologram)
		}
	}
}

// DefaultLayout 一个小房间：门与按钮、带两个按键和全息屏的终端、闪烁箱
func DefaultLayout() []ObjectSpec {
	return []ObjectSpec{
		{Name: "door", Kind: "door", Position: [3]float32{0, 0, 10}},
		{Name: "door_button", Kind: "button", Position: [3]float32{2, 1, 9}, Triggers: []string{"door"}},
		{Name: "terminal", Kind: "computer", Position: [3]float32{-4, 1, 4},
			KeyLeft: "terminal_left", KeyRight: "terminal_right", Hologram: "terminal_screen"},
		{Name: "terminal_left", Kind: "button", Position: [3]float32{-4.5, 1, 3.5}, Triggers: []string{"terminal"}},
		{Name: "terminal_right", Kind: "button", Position: [3]float32{-3.5, 1, 3.5}, Triggers: []string{"terminal"}},
		{Name: "terminal_screen", Kind: "hologram", Position: [3]float32{-4, 2, 4}},
		{Name: "blinky", Kind: "blinkybox", Position: [3]float32{4, 0, 4}},
	}
}
