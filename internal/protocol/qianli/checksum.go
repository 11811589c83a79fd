package qianli

// XorFold 计算负载的异或校验
// 首字节作为初值，依次与后续字节异或；空数据返回 0
func XorFold(data []byte) byte {
	if len(data) == 0 {
		return 0
	}
	cs := data[0]
	for _, b := range data[1:] {
		cs ^= b
	}
	return cs
}

// VerifyChecksum 校验帧头中的 checksum 与负载是否一致
func VerifyChecksum(checksum byte, payload []byte) bool {
	return XorFold(payload) == checksum
}
