package server

import (
	"syncarena/entity"
	"syncarena/wire"
)

// Player 已连接的玩家：连接号与其控制的角色、背包
type Player struct {
	Conn      wire.ConnID
	Character *entity.Character
	Inventory *entity.Inventory
}

// EntityIDs SpawnEntity 中携带的 ID 顺序：角色在前、背包在后
func (p *Player) EntityIDs() []int32 {
	return []int32{p.Character.ID(), p.Inventory.ID()}
}
