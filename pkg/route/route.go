// Package route 命名路由与URL生成
package route

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// MessageRoute 私信路由名称
const MessageRoute = "user/message"

// Route 命名路由，pattern 形如 /api/v1/message/:action/:id
type Route struct {
	name     string
	segments []string
}

// Name 路由名称
func (r *Route) Name() string {
	return r.name
}

// URI 用参数填充占位段生成路径
// 从第一个缺失参数开始，之后的段全部省略
func (r *Route) URI(params map[string]string) string {
	parts := make([]string, 0, len(r.segments))
	for _, seg := range r.segments {
		if strings.HasPrefix(seg, ":") {
			value, ok := params[seg[1:]]
			if !ok || value == "" {
				break
			}
			seg = url.PathEscape(value)
		}
		parts = append(parts, seg)
	}
	return "/" + strings.Join(parts, "/")
}

// Registry 路由注册表
type Registry struct {
	mu     sync.RWMutex
	routes map[string]*Route
}

// NewRegistry 创建路由注册表
func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]*Route)}
}

// Set 注册或覆盖命名路由
func (reg *Registry) Set(name, pattern string) *Route {
	var segments []string
	for _, seg := range strings.Split(pattern, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	r := &Route{name: name, segments: segments}

	reg.mu.Lock()
	reg.routes[name] = r
	reg.mu.Unlock()
	return r
}

// Get 获取命名路由
func (reg *Registry) Get(name string) (*Route, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	r, ok := reg.routes[name]
	if !ok {
		return nil, fmt.Errorf("route %q not found", name)
	}
	return r, nil
}

// NewDefaultRegistry 注册系统使用的命名路由
func NewDefaultRegistry(basePath string) *Registry {
	reg := NewRegistry()
	reg.Set(MessageRoute, strings.TrimRight(basePath, "/")+"/message/:action/:id")
	return reg
}
