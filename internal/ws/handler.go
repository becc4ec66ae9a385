package ws

import (
	"net/http"

	"github.com/digitalsp/ai-rakugaki-app/internal/logs"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// DeviceChecker reports whether a device ID is registered.
type DeviceChecker interface {
	DeviceExists(id string) bool
}

type HTTP struct {
	hub      *Hub
	devices  DeviceChecker
	upgrader websocket.Upgrader
}

func NewHTTP(hub *Hub, devices DeviceChecker, allowOrigin string) *HTTP {
	return &HTTP{
		hub:     hub,
		devices: devices,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowOrigin == "" || allowOrigin == "*" {
					return true
				}
				return origin == allowOrigin
			},
		},
	}
}

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/{device_id}", h.serve).Methods(http.MethodGet)
}

func (h *HTTP) serve(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["device_id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Logger.Warnf("websocket upgrade: %v", err)
		return
	}

	// Незнакомое устройство — policy violation, сокет не регистрируем.
	if !h.devices.DeviceExists(deviceID) {
		logs.Logger.WithField("device_id", deviceID).Warn("websocket rejected: unknown device")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid device_id"))
		_ = conn.Close()
		return
	}

	h.hub.Connect(deviceID, conn)
	defer func() {
		h.hub.Disconnect(deviceID, conn)
		_ = conn.Close()
	}()

	// Клиентских сообщений в протоколе нет: читаем и отбрасываем,
	// цикл нужен только чтобы заметить закрытие соединения.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
