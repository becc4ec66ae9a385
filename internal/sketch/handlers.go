package sketch

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/digitalsp/ai-rakugaki-app/internal/imaging"

	"github.com/gorilla/mux"
)

type HTTP struct{ svc *Service }

func NewHTTP(svc *Service) *HTTP { return &HTTP{svc: svc} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	// OPTIONS нужен в Methods: mux собирает цепочку middleware только для
	// совпавшего маршрута, иначе CORS preflight уходит в 405 мимо CORS.
	r.HandleFunc("/register-device", h.registerDevice).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/verify-device", h.verifyDevice).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/get-new-topic", h.getNewTopic).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/save-canvas", h.saveCanvas).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/images/{device_id}", h.listImages).Methods(http.MethodGet)
	r.HandleFunc("/list-devices", h.listDevices).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]any{"success": false, "detail": detail})
}

// статусы по таксономии ошибок: клиентские — 4xx, ресурсные — 5xx.
func errStatus(err error) int {
	switch {
	case errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrRequestMismatch):
		return http.StatusNotFound
	case errors.Is(err, imaging.ErrMalformedDataURL),
		errors.Is(err, imaging.ErrInvalidBase64),
		errors.Is(err, imaging.ErrUnsupportedImage):
		return http.StatusBadRequest
	case errors.Is(err, ErrCanvasAlreadySet):
		return http.StatusConflict
	case errors.Is(err, ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTP) registerDevice(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.RegisterDevice()
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"device_id": reg.DeviceID,
		"topic":     reg.Topic,
		"image_id":  reg.RequestID,
	})
}

func (h *HTTP) verifyDevice(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DeviceID string `json:"device_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "invalid body (need {device_id})")
		return
	}
	reg, err := h.svc.VerifyDevice(in.DeviceID)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"device_id": reg.DeviceID,
		"topic":     reg.Topic,
	})
}

func (h *HTTP) getNewTopic(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DeviceID string `json:"device_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "invalid body (need {device_id})")
		return
	}
	reg, err := h.svc.AssignNewTopic(in.DeviceID)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"topic":    reg.Topic,
		"image_id": reg.RequestID,
	})
}

func (h *HTTP) saveCanvas(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DeviceID       string  `json:"device_id"`
		ImageID        string  `json:"image_id"`
		ImageData      string  `json:"image_data"`
		NegativePrompt *string `json:"negative_prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.DeviceID == "" || in.ImageID == "" || in.ImageData == "" {
		writeError(w, http.StatusBadRequest, "invalid body (need {device_id, image_id, image_data})")
		return
	}
	filename, err := h.svc.SubmitCanvas(in.DeviceID, in.ImageID, in.ImageData, in.NegativePrompt)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	// Генерация продолжается в фоне; результат придёт по websocket.
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success":   true,
		"file_name": filename,
	})
}

type imageEntry struct {
	ID                string    `json:"id"`
	Topic             string    `json:"topic"`
	Status            string    `json:"status"`
	RequestTime       time.Time `json:"request_time"`
	CanvasFilename    *string   `json:"canvas_image_filename"`
	GeneratedFilename *string   `json:"generated_image_filename"`
}

func (h *HTTP) listImages(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["device_id"]
	reqs, err := h.svc.ListRequests(deviceID)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	images := make([]imageEntry, 0, len(reqs))
	for _, req := range reqs {
		e := imageEntry{
			ID:                req.ID,
			Status:            req.Status,
			RequestTime:       req.RequestTime,
			CanvasFilename:    req.CanvasFilename,
			GeneratedFilename: req.GeneratedFilename,
		}
		if req.Topic != nil {
			e.Topic = req.Topic.Name
		}
		images = append(images, e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "images": images})
}

func (h *HTTP) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.svc.ListDevices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]any, 0, len(devices))
	for _, d := range devices {
		out = append(out, map[string]any{
			"device_id":  d.ID,
			"created_at": d.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
