package types

// TrafficStats 用于报告一次回显会话的流量统计信息
type TrafficStats struct {
	Uplink   uint64 // 写回对端的字节数
	Downlink uint64 // 从对端读到的字节数
}
