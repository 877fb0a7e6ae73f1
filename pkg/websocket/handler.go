package websocket

import (
	"net/http"
	"strings"
	"time"

	"pm-system/config"
	"pm-system/pkg/jwt"
	"pm-system/pkg/logger"
	"pm-system/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许跨域
	},
}

// Handler WebSocket 接入
type Handler struct {
	manager *Manager
	jwt     *jwt.JWTService
	cfg     config.WebSocketConfig
}

// NewHandler 创建Handler实例
func NewHandler(manager *Manager, jwtService *jwt.JWTService, cfg config.WebSocketConfig) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	return &Handler{manager: manager, jwt: jwtService, cfg: cfg}
}

// Serve Gin路由处理函数
// token 通过查询参数或 Sec-WebSocket-Protocol 传递
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Sec-WebSocket-Protocol"), "Bearer ")
	}
	if token == "" {
		response.Unauthorized(c, "缺少token")
		return
	}

	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		response.Unauthorized(c, "token无效或已过期")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		response.Unauthorized(c, "token无效")
		return
	}

	// 回显子协议，避免客户端提示 "Server sent no subprotocol"
	respHeader := http.Header{}
	if protocol := c.GetHeader("Sec-WebSocket-Protocol"); protocol != "" {
		respHeader.Set("Sec-WebSocket-Protocol", protocol)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, respHeader)
	if err != nil {
		logger.Warn("WebSocket升级失败", zap.Error(err), zap.Uint("user_id", userID))
		return
	}

	client := NewClient(userID, conn, sendBuffer)
	replaced := h.manager.IsOnline(userID)
	h.manager.AddClient(client)
	logger.Info("WebSocket连接建立", zap.Uint("user_id", userID), zap.Bool("replaced", replaced))

	go h.writePump(client)
	h.readPump(client)
}

// writePump 发送推送消息并定时发送ping心跳
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				_ = client.Conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeTimeout))
				return
			}
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端数据（只用于保活），超时未收到任何读事件则断开
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.manager.RemoveClient(client)
		_ = client.Conn.Close()
		logger.Info("WebSocket连接关闭", zap.Uint("user_id", client.UserID))
	}()

	_ = client.Conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
		_ = client.Conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	}
}
