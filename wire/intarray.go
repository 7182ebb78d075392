package wire

// SplitInts 把 N 个 32 位整数拆成四个平行的字节数组，
// planes[k][i] 为第 i 个整数的第 k 个字节（k=0 为最低位）。
// 小整数或相近整数（如 ID 列表）的高位平面几乎全为常量，便于后续通用压缩。
func SplitInts(v []int32) [4][]byte {
	var planes [4][]byte
	for k := range planes {
		planes[k] = make([]byte, len(v))
	}
	for i, x := range v {
		u := uint32(x)
		planes[0][i] = byte(u)
		planes[1][i] = byte(u >> 8)
		planes[2][i] = byte(u >> 16)
		planes[3][i] = byte(u >> 24)
	}
	return planes
}

// JoinInts 按位置重组 SplitInts 的输出
func JoinInts(planes [4][]byte) ([]int32, error) {
	n := len(planes[0])
	for k := 1; k < 4; k++ {
		if len(planes[k]) != n {
			return nil, ErrPlaneMismatch
		}
	}
	v := make([]int32, n)
	for i := 0; i < n; i++ {
		v[i] = int32(uint32(planes[0][i]) |
			uint32(planes[1][i])<<8 |
			uint32(planes[2][i])<<16 |
			uint32(planes[3][i])<<24)
	}
	return v, nil
}
