package sketch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/digitalsp/ai-rakugaki-app/internal/middleware"

	"github.com/gorilla/mux"
)

func newTestRouter(t *testing.T) (*mux.Router, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t, nil)
	r := mux.NewRouter()
	NewHTTP(svc).RegisterRoutes(r)
	return r, svc
}

func doJSON(t *testing.T, r *mux.Router, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestRegisterDeviceEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, out := doJSON(t, r, http.MethodPost, "/register-device", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if out["success"] != true || out["device_id"] == "" || out["topic"] != "cat" {
		t.Fatalf("unexpected response: %v", out)
	}

	// verify возвращает ту же тему для того же устройства
	rec, out = doJSON(t, r, http.MethodPost, "/verify-device",
		map[string]string{"device_id": out["device_id"].(string)})
	if rec.Code != http.StatusOK || out["topic"] != "cat" {
		t.Fatalf("verify: status=%d body=%v", rec.Code, out)
	}
}

func TestVerifyUnknownDeviceEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	rec, out := doJSON(t, r, http.MethodPost, "/verify-device", map[string]string{"device_id": "ghost"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if out["success"] != false {
		t.Fatalf("unexpected body: %v", out)
	}
}

func TestSaveCanvasMalformedEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	_, reg := doJSON(t, r, http.MethodPost, "/register-device", nil)

	rec, out := doJSON(t, r, http.MethodPost, "/save-canvas", map[string]string{
		"device_id":  reg["device_id"].(string),
		"image_id":   reg["image_id"].(string),
		"image_data": "not-a-data-url",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if out["success"] != false {
		t.Fatalf("unexpected body: %v", out)
	}
}

func TestSaveCanvasAcceptedEndpoint(t *testing.T) {
	r, svc := newTestRouter(t)
	_, reg := doJSON(t, r, http.MethodPost, "/register-device", nil)

	rec, out := doJSON(t, r, http.MethodPost, "/save-canvas", map[string]string{
		"device_id":  reg["device_id"].(string),
		"image_id":   reg["image_id"].(string),
		"image_data": canvasDataURL(t),
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body)
	}
	if out["success"] != true || out["file_name"] == "" {
		t.Fatalf("unexpected body: %v", out)
	}
	if len(svc.pool.tasks) != 1 {
		t.Fatalf("queued tasks = %d, want 1", len(svc.pool.tasks))
	}
}

func TestImagesEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	_, reg := doJSON(t, r, http.MethodPost, "/register-device", nil)
	deviceID := reg["device_id"].(string)

	rec, out := doJSON(t, r, http.MethodGet, "/images/"+deviceID, nil)
	if rec.Code != http.StatusOK || out["success"] != true {
		t.Fatalf("status=%d body=%v", rec.Code, out)
	}
	images, ok := out["images"].([]any)
	if !ok || len(images) != 1 {
		t.Fatalf("images = %v, want one entry", out["images"])
	}
	entry := images[0].(map[string]any)
	if entry["topic"] != "cat" || entry["status"] != "pending" {
		t.Fatalf("unexpected entry: %v", entry)
	}

	rec, _ = doJSON(t, r, http.MethodGet, "/images/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown device: status = %d, want 404", rec.Code)
	}
}

func TestGetNewTopicEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	_, reg := doJSON(t, r, http.MethodPost, "/register-device", nil)

	rec, out := doJSON(t, r, http.MethodPost, "/get-new-topic",
		map[string]string{"device_id": reg["device_id"].(string)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if out["topic"] != "cat" || out["image_id"] == reg["image_id"] {
		t.Fatalf("expected fresh request with topic, got %v", out)
	}

	rec, _ = doJSON(t, r, http.MethodPost, "/get-new-topic", map[string]string{"device_id": "ghost"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown device: status = %d, want 404", rec.Code)
	}
}

func TestPreflightReachesCORSMiddleware(t *testing.T) {
	const origin = "http://localhost:3000"
	svc, _, _ := newTestService(t, nil)
	r := mux.NewRouter()
	r.Use(middleware.CORS(origin))
	NewHTTP(svc).RegisterRoutes(r)

	for _, path := range []string{"/register-device", "/verify-device", "/get-new-topic", "/save-canvas"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("OPTIONS %s: status = %d, want 204", path, rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Fatalf("OPTIONS %s: allow-origin = %q, want %q", path, got, origin)
		}
	}

	// обычный POST через ту же цепочку несёт CORS-заголовок
	rec, out := doJSON(t, r, http.MethodPost, "/register-device", nil)
	if rec.Code != http.StatusOK || out["success"] != true {
		t.Fatalf("POST through CORS chain: status=%d body=%v", rec.Code, out)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
		t.Fatalf("POST allow-origin = %q, want %q", got, origin)
	}
}

func TestListDevicesEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/register-device", nil)
	doJSON(t, r, http.MethodPost, "/register-device", nil)

	req := httptest.NewRequest(http.MethodGet, "/list-devices", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var devices []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &devices); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(devices))
	}
	for _, d := range devices {
		if d["device_id"] == "" || d["created_at"] == nil {
			t.Fatalf("incomplete device entry: %v", d)
		}
	}
}
