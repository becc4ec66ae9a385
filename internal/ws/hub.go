// Package ws keeps at most one push connection per device and delivers
// best-effort, at-most-once notifications. No queuing, no redelivery: a
// message sent while the device is offline is dropped.
package ws

import (
	"sync"

	"github.com/digitalsp/ai-rakugaki-app/internal/logs"

	"github.com/gorilla/websocket"
)

// client оборачивает сокет собственным мьютексом записи:
// gorilla/websocket не допускает одновременных писателей, а зависший
// клиент не должен блокировать реестр целиком.
type client struct {
	ws *websocket.Conn
	mu sync.Mutex
}

type Hub struct {
	mu    sync.Mutex
	conns map[string]*client
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*client)}
}

// Connect регистрирует соединение устройства. Последнее подключение
// выигрывает; прежний сокет явно закрывается, чтобы не протекал.
func (h *Hub) Connect(deviceID string, conn *websocket.Conn) {
	h.mu.Lock()
	prev := h.conns[deviceID]
	h.conns[deviceID] = &client{ws: conn}
	h.mu.Unlock()

	if prev != nil {
		prev.mu.Lock()
		_ = prev.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "replaced by newer connection"))
		_ = prev.ws.Close()
		prev.mu.Unlock()
	}
	logs.Logger.WithField("device_id", deviceID).Info("websocket connected")
}

// Disconnect снимает регистрацию, только если она всё ещё указывает на conn
// (устаревший reader не должен выбить более новое соединение). Идемпотентно.
func (h *Hub) Disconnect(deviceID string, conn *websocket.Conn) {
	h.mu.Lock()
	if cur, ok := h.conns[deviceID]; ok && (conn == nil || cur.ws == conn) {
		delete(h.conns, deviceID)
		logs.Logger.WithField("device_id", deviceID).Info("websocket disconnected")
	}
	h.mu.Unlock()
}

// Send пишет текстовое сообщение в текущее соединение устройства.
// Ошибка записи логируется и проглатывается: доставка best-effort.
// Реестр блокируется только на время поиска; запись сериализуется
// мьютексом соединения.
func (h *Hub) Send(deviceID string, message []byte) {
	h.mu.Lock()
	cl := h.conns[deviceID]
	h.mu.Unlock()

	if cl == nil {
		logs.Logger.WithField("device_id", deviceID).Debug("no websocket connection, dropping notification")
		return
	}
	cl.mu.Lock()
	err := cl.ws.WriteMessage(websocket.TextMessage, message)
	cl.mu.Unlock()
	if err != nil {
		logs.Logger.WithField("device_id", deviceID).Warnf("websocket send failed: %v", err)
	}
}

// Connected — есть ли активное соединение (для тестов и диагностики).
func (h *Hub) Connected(deviceID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.conns[deviceID]
	return ok
}
