package wire

import "math"

// Vec3 三维向量，线上以 3 个 float32 编码
type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(k float32) Vec3 {
	return Vec3{v.X * k, v.Y * k, v.Z * k}
}

// Length 欧氏长度
func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// IsZero 是否零向量
func (v Vec3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// Normalized 单位化；零向量原样返回
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Lerp 在 v 与 to 之间线性插值，t 被裁剪到 [0,1]
func (v Vec3) Lerp(to Vec3, t float32) Vec3 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return v.Add(to.Sub(v).Scale(t))
}
