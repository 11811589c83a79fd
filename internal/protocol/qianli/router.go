package qianli

import "sync"

// Handler 帧处理函数
type Handler func(*Frame) error

// Table 按 (model, cmd) 路由的处理表
// 精确匹配优先，其次是按 model 注册的通配处理器；都未命中时忽略该帧。
type Table struct {
	mu    sync.RWMutex
	exact map[uint16]Handler
	model map[byte]Handler
}

func NewTable() *Table {
	return &Table{exact: make(map[uint16]Handler), model: make(map[byte]Handler)}
}

// Register 注册 (model, cmd) 精确处理器，重复注册覆盖
func (t *Table) Register(model, cmd byte, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exact[RouteKey(model, cmd)] = h
}

// RegisterModel 注册某个 model 下任意 cmd 的处理器
func (t *Table) RegisterModel(model byte, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.model[model] = h
}

// Route 分发帧；matched=false 表示没有处理器（帧被忽略）
func (t *Table) Route(f *Frame) (matched bool, err error) {
	t.mu.RLock()
	h := t.exact[f.Key()]
	if h == nil {
		h = t.model[f.Model]
	}
	t.mu.RUnlock()
	if h == nil {
		return false, nil
	}
	return true, h(f)
}
