package service

import "sync"

// entityLocks 按实体键序列化“读取-判断-写入”序列，保证同一设备的并发登录、
// 同一聊天的并发发言有确定的先后次序。
type entityLocks struct {
	m sync.Map
}

func (l *entityLocks) lock(key string) func() {
	v, _ := l.m.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
