package replica

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

var (
	// ErrRegistryFull ID 空间耗尽；系统继续运行，但在释放 ID 之前无法注册新实体
	ErrRegistryFull = errors.New("replica: registry full")
	// ErrIDInUse 预设 ID 已被另一个实体占用
	ErrIDInUse = errors.New("replica: id already in use")
	// ErrAlreadyRegistered 实体已以另一个 ID 注册
	ErrAlreadyRegistered = errors.New("replica: entity registered under another id")
	// ErrInvalidID ID 为负或超出上限
	ErrInvalidID = errors.New("replica: id out of range")
)

// Role 注册表所在进程的角色；类型索引与策略表只在服务端维护
type Role uint8

const (
	RoleServer Role = iota
	RoleClient
)

// String 日志用
func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Option 注册表可选项
type Option func(*Registry)

// WithMaxID 把 ID 空间限制在 [0, max]
func WithMaxID(max ID) Option {
	return func(r *Registry) {
		if max >= 0 {
			r.maxID = max
		}
	}
}

// Registry 进程内唯一的可同步实体数据库（由调用方构造并注入，不是全局单例）。
// 所有方法都应在宿主的单一循环协程中调用，内部不加锁。
type Registry struct {
	role    Role
	log     *zap.SugaredLogger
	maxID   ID
	counter ID

	entities map[ID]Syncable
	owners   map[Syncable]ID
	byKind   map[Kind]*idSet
	policies map[Kind]Policy

	staticIDs []ID
}

// NewRegistry 构造空注册表，log 为 nil 时不输出日志
func NewRegistry(role Role, log *zap.SugaredLogger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Registry{
		role:     role,
		log:      log.Named("registry"),
		maxID:    math.MaxInt32,
		entities: make(map[ID]Syncable),
		owners:   make(map[Syncable]ID),
		byKind:   make(map[Kind]*idSet),
		policies: make(map[Kind]Policy),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Role 注册表所在进程的角色
func (r *Registry) Role() Role { return r.role }

// Register 注册实体；实体没有 ID 时通过 CreateID 分配。
// 同一实体以原 ID 重复注册无副作用；已注册的实体换了 ID 时拒绝，并恢复原 ID。
func (r *Registry) Register(e Syncable) (ID, error) {
	if prev, ok := r.owners[e]; ok {
		if e.ID() == prev {
			return prev, nil
		}
		got := e.ID()
		e.SetID(prev)
		return NoID, fmt.Errorf("%w: %d, asked for %d (%s)", ErrAlreadyRegistered, prev, got, e.Kind())
	}
	if e.ID() == NoID {
		id, err := r.CreateID()
		if err != nil {
			return NoID, err
		}
		e.SetID(id)
	}
	id := e.ID()
	if cur, ok := r.entities[id]; ok && cur != e {
		return NoID, fmt.Errorf("%w: %d (%s)", ErrIDInUse, id, cur.Kind())
	}
	r.entities[id] = e
	r.owners[e] = id
	if r.role == RoleServer {
		r.index(e)
	}
	return id, nil
}

func (r *Registry) index(e Syncable) {
	k := e.Kind()
	set, ok := r.byKind[k]
	if !ok {
		set = newIDSet()
		r.byKind[k] = set
		r.policies[k] = e.Policy().normalized()
	} else if p := e.Policy().normalized(); p != r.policies[k] {
		r.log.Debugw("ignoring differing policy for known kind", "kind", k, "kept", r.policies[k], "got", p)
	}
	set.add(e.ID())
}

// CreateID 返回下一个未使用的非负 ID。
// 计数器单调前进，越过上限后回绕到 0，并线性探测跳过占用的 ID；
// 探测一整圈仍无空位时记录错误并返回 ErrRegistryFull。
func (r *Registry) CreateID() (ID, error) {
	start := r.counter
	id := start
	for {
		if _, used := r.entities[id]; !used {
			r.counter = r.next(id)
			return id, nil
		}
		id = r.next(id)
		if id == start {
			r.log.Errorw("registry full, no free entity id", "max_id", r.maxID, "entities", len(r.entities))
			return NoID, ErrRegistryFull
		}
	}
}

func (r *Registry) next(id ID) ID {
	if id >= r.maxID {
		return 0
	}
	return id + 1
}

// Get 按 ID 查找实体
func (r *Registry) Get(id ID) (Syncable, bool) {
	e, ok := r.entities[id]
	return e, ok
}

// Remove 删除实体，ID 随即可被复用
func (r *Registry) Remove(id ID) {
	e, ok := r.entities[id]
	if !ok {
		return
	}
	delete(r.entities, id)
	delete(r.owners, e)
	if r.role == RoleServer {
		if set, ok := r.byKind[e.Kind()]; ok {
			set.remove(id)
		}
	}
}

// Len 已注册实体数
func (r *Registry) Len() int { return len(r.entities) }

// Kinds 已知种类（仅服务端），按枚举顺序
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.byKind))
	for k := range r.byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// IDsOf 某种类的全部 ID（仅服务端）。返回内部切片，调用方不得修改
func (r *Registry) IDsOf(k Kind) []ID {
	if set, ok := r.byKind[k]; ok {
		return set.ids
	}
	return nil
}

// PolicyOf 某种类的策略（由首个注册实例决定）
func (r *Registry) PolicyOf(k Kind) (Policy, bool) {
	p, ok := r.policies[k]
	return p, ok
}

// idSet 保持插入的集合，删除时与末尾交换
type idSet struct {
	ids []ID
	pos map[ID]int
}

func newIDSet() *idSet { return &idSet{pos: make(map[ID]int)} }

func (s *idSet) add(id ID) {
	if _, ok := s.pos[id]; ok {
		return
	}
	s.pos[id] = len(s.ids)
	s.ids = append(s.ids, id)
}

func (s *idSet) remove(id ID) {
	i, ok := s.pos[id]
	if !ok {
		return
	}
	last := len(s.ids) - 1
	if i != last {
		s.ids[i] = s.ids[last]
		s.pos[s.ids[i]] = i
	}
	s.ids = s.ids[:last]
	delete(s.pos, id)
}
