package replica

import (
	"fmt"
	"sort"
)

// Static 世界中预先存在的对象（门、按钮、终端等）
type Static interface {
	Syncable
	Placed
}

// 各坐标分量与种类偏移的权重，互不相同的较大素数
const (
	staticWeightX    = 677
	staticWeightY    = 881
	staticWeightZ    = 313
	staticWeightKind = 463
)

func staticKey(s Static) float64 {
	p := s.Position()
	return float64(p.X)*staticWeightX +
		float64(p.Y)*staticWeightY +
		float64(p.Z)*staticWeightZ +
		float64(s.Kind())*staticWeightKind
}

// staticLess 先比组合键；键相同时依次比种类与 X、Y、Z，次序与输入顺序无关
func staticLess(a, b Static) bool {
	if ka, kb := staticKey(a), staticKey(b); ka != kb {
		return ka < kb
	}
	if a.Kind() != b.Kind() {
		return a.Kind() < b.Kind()
	}
	pa, pb := a.Position(), b.Position()
	if pa.X != pb.X {
		return pa.X < pb.X
	}
	if pa.Y != pb.Y {
		return pa.Y < pb.Y
	}
	return pa.Z < pb.Z
}

// SortStatic 按确定性组合键稳定排序；相同布局总得到相同次序
func SortStatic(objects []Static) []Static {
	sorted := append([]Static(nil), objects...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return staticLess(sorted[i], sorted[j])
	})
	return sorted
}

// AssignStaticIDs 为静态对象分配稳定 ID，每个进程调用一次。
// provided 为 nil 时新分配；否则按排序后的位置逐一套用 provided，
// 多出的对象不注册。返回按排序次序的 ID 列表。
func (r *Registry) AssignStaticIDs(objects []Static, provided []ID) ([]ID, error) {
	sorted := SortStatic(objects)
	assigned := make([]ID, 0, len(sorted))

	if provided == nil {
		for _, obj := range sorted {
			if _, ok := r.owners[obj]; ok {
				r.rollback(sorted[:len(assigned)])
				return nil, fmt.Errorf("assign static id for %s: %w", obj.Kind(), ErrAlreadyRegistered)
			}
			obj.ClearID()
			id, err := r.Register(obj)
			if err != nil {
				r.rollback(sorted[:len(assigned)])
				return nil, fmt.Errorf("assign static id for %s: %w", obj.Kind(), err)
			}
			assigned = append(assigned, id)
		}
		r.staticIDs = assigned
		return assigned, nil
	}

	n := min(len(sorted), len(provided))
	if err := r.checkProvided(sorted[:n], provided[:n]); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		sorted[i].SetID(provided[i])
		id, err := r.Register(sorted[i])
		if err != nil {
			r.rollback(sorted[:i])
			return nil, fmt.Errorf("assign provided static id %d: %w", provided[i], err)
		}
		assigned = append(assigned, id)
	}
	if len(sorted) != len(provided) {
		r.log.Warnw("static id list does not match world layout",
			"objects", len(sorted), "provided", len(provided))
	}
	r.staticIDs = assigned
	return assigned, nil
}

// checkProvided 在修改任何状态之前校验整张 ID 列表
func (r *Registry) checkProvided(objects []Static, provided []ID) error {
	seen := make(map[ID]struct{}, len(provided))
	for i, id := range provided {
		if id < 0 || id > r.maxID {
			return fmt.Errorf("assign provided static id %d: %w", id, ErrInvalidID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("assign provided static id %d: duplicate in list: %w", id, ErrIDInUse)
		}
		seen[id] = struct{}{}
		if cur, ok := r.entities[id]; ok && cur != objects[i] {
			return fmt.Errorf("assign provided static id %d: %w (%s)", id, ErrIDInUse, cur.Kind())
		}
		if prev, ok := r.owners[objects[i]]; ok && prev != id {
			return fmt.Errorf("assign provided static id %d: object holds %d: %w", id, prev, ErrAlreadyRegistered)
		}
	}
	return nil
}

// rollback 撤销本次已注册的对象
func (r *Registry) rollback(objects []Static) {
	for _, obj := range objects {
		r.Remove(obj.ID())
		obj.ClearID()
	}
}

// StaticIDs 最近一次 AssignStaticIDs 的结果（发给新连接的客户端）
func (r *Registry) StaticIDs() []ID {
	return append([]ID(nil), r.staticIDs...)
}
