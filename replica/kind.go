package replica

import "fmt"

// Kind 可同步实体的种类标签，作为策略表与类型索引的键
type Kind uint8

const (
	KindCharacter Kind = iota
	KindInventory
	KindDoor
	KindButton
	KindComputer
	KindBlinkyBox
	KindHologram
)

var kindNames = [...]string{
	KindCharacter: "character",
	KindInventory: "inventory",
	KindDoor:      "door",
	KindButton:    "button",
	KindComputer:  "computer",
	KindBlinkyBox: "blinkybox",
	KindHologram:  "hologram",
}

// String 种类名，与配置文件中的写法一致
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind 由名称解析种类（用于世界布局配置）
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}
