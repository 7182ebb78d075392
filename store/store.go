package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"syncarena/replica"
	"syncarena/wire"
)

var (
	bucketStatic = []byte("static_ids")
	bucketMeta   = []byte("meta")

	keyInstanceID = []byte("instance_id")

	// 布局指纹的命名空间
	layoutNamespace = uuid.MustParse("6f1c8e0a-3b7d-5f4e-9a21-57a1c0de5e11")
)

// ErrNotFound 该布局尚未保存过静态 ID
var ErrNotFound = errors.New("store: not found")

// Storage bbolt 持久化：静态对象 ID 列表与服务端实例标识
type Storage struct {
	db *bbolt.DB
}

// Open 打开（必要时创建）数据库文件
func Open(ctx context.Context, path string) (*Storage, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}
	s := &Storage{db: db}
	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}
	return s, nil
}

// Close 关闭数据库，重复调用无副作用
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketStatic, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", b, err)
			}
		}
		return nil
	})
}

// Fingerprint 布局指纹：排序后的种类与坐标序列的 SHA1 UUID。
// 对象的构造顺序不影响结果。
func Fingerprint(objects []replica.Static) uuid.UUID {
	w := wire.NewWriter()
	for _, o := range replica.SortStatic(objects) {
		w.WriteUint8(uint8(o.Kind()))
		w.WriteVec3(o.Position())
	}
	return uuid.NewSHA1(layoutNamespace, w.Bytes())
}

// SaveStaticIDs 记录某布局的静态 ID 分配
func (s *Storage) SaveStaticIDs(ctx context.Context, layout uuid.UUID, ids []replica.ID) error {
	w := wire.NewWriter()
	w.WriteInts(ids)
	if err := w.Err(); err != nil {
		return fmt.Errorf("encode static ids: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketStatic)
		if bucket == nil {
			return fmt.Errorf("static bucket not found")
		}
		if err := bucket.Put(layout[:], w.Bytes()); err != nil {
			return fmt.Errorf("failed to save static ids: %w", err)
		}
		return nil
	})
}

// LoadStaticIDs 读取某布局的静态 ID；未保存时返回 ErrNotFound
func (s *Storage) LoadStaticIDs(ctx context.Context, layout uuid.UUID) ([]replica.ID, error) {
	var ids []replica.ID
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketStatic)
		if bucket == nil {
			return fmt.Errorf("static bucket not found")
		}
		raw := bucket.Get(layout[:])
		if raw == nil {
			return ErrNotFound
		}
		r := wire.NewReader(raw)
		ids = r.ReadInts()
		return r.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load static ids for %s: %w", layout, err)
	}
	if ids == nil {
		ids = []replica.ID{}
	}
	return ids, nil
}

// InstanceID 服务端实例标识，首次调用时生成并持久化
func (s *Storage) InstanceID(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}
		if raw := bucket.Get(keyInstanceID); raw != nil {
			parsed, err := uuid.FromBytes(raw)
			if err != nil {
				return fmt.Errorf("corrupt instance id: %w", err)
			}
			id = parsed
			return nil
		}
		id = uuid.New()
		return bucket.Put(keyInstanceID, id[:])
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get instance id: %w", err)
	}
	return id, nil
}
