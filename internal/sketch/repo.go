package sketch

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/digitalsp/ai-rakugaki-app/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrDeviceNotFound    = errors.New("unknown device")
	ErrTopicNotFound     = errors.New("unknown topic")
	ErrRequestNotFound   = errors.New("image request not found")
	ErrTopicCatalogEmpty = errors.New("topic catalog empty")
	ErrCanvasAlreadySet  = errors.New("canvas filename already set")
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// ── Devices ─────────────────────────────────────────────────

func (r *Repo) CreateDevice() (*models.Device, error) {
	d := models.Device{ID: uuid.NewString()}
	if err := r.db.Create(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) GetDevice(id string) (*models.Device, error) {
	var d models.Device
	if err := r.db.First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repo) DeviceExists(id string) bool {
	_, err := r.GetDevice(id)
	return err == nil
}

func (r *Repo) ListDevices() ([]models.Device, error) {
	var out []models.Device
	err := r.db.Order("created_at").Find(&out).Error
	return out, err
}

// ── Topics ──────────────────────────────────────────────────

func (r *Repo) CreateTopic(t *models.Topic) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return r.db.Create(t).Error
}

// GetRandomTopic выбирает равновероятную тему из каталога.
func (r *Repo) GetRandomTopic() (*models.Topic, error) {
	var topics []models.Topic
	if err := r.db.Find(&topics).Error; err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, ErrTopicCatalogEmpty
	}
	return &topics[rand.IntN(len(topics))], nil
}

// ── Requests ────────────────────────────────────────────────

// CreateRequest создаёт запись запроса, проверяя существование device и topic
// внутри транзакции (ссылочная целостность не зависит от прагм драйвера).
func (r *Repo) CreateRequest(deviceID, topicID string, negativeOverride *string) (*models.SketchRequest, error) {
	req := models.SketchRequest{
		ID:             uuid.NewString(),
		DeviceID:       deviceID,
		TopicID:        topicID,
		NegativePrompt: negativeOverride,
		Status:         models.StatusPending,
		RequestTime:    time.Now().UTC(),
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Device{}, "id = ?", deviceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDeviceNotFound
			}
			return err
		}
		if err := tx.First(&models.Topic{}, "id = ?", topicID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTopicNotFound
			}
			return err
		}
		return tx.Create(&req).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repo) GetRequest(id string) (*models.SketchRequest, error) {
	var req models.SketchRequest
	if err := r.db.Preload("Topic").First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// SetCanvasFilename — первый записавший выигрывает: повторная попытка не
// перетирает уже сохранённый файл и возвращает ErrCanvasAlreadySet.
func (r *Repo) SetCanvasFilename(id, filename string) (*models.SketchRequest, error) {
	var req models.SketchRequest
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if req.CanvasFilename != nil {
			return ErrCanvasAlreadySet
		}
		req.CanvasFilename = &filename
		return tx.Model(&req).Update("canvas_image_filename", filename).Error
	})
	if err != nil && !errors.Is(err, ErrCanvasAlreadySet) {
		return nil, err
	}
	return &req, err
}

func (r *Repo) SetGeneratedFilename(id, filename string) (*models.SketchRequest, error) {
	req, err := r.GetRequest(id)
	if err != nil {
		return nil, err
	}
	req.GeneratedFilename = &filename
	if err := r.db.Model(&models.SketchRequest{ID: id}).Update("generated_image_filename", filename).Error; err != nil {
		return nil, err
	}
	return req, nil
}

func (r *Repo) SetNegativePrompt(id, prompt string) error {
	return r.db.Model(&models.SketchRequest{ID: id}).Update("negative_prompt", prompt).Error
}

func (r *Repo) SetStatus(id, status string) error {
	return r.db.Model(&models.SketchRequest{ID: id}).Update("status", status).Error
}

// LatestRequest — запрос устройства с максимальным request_time.
func (r *Repo) LatestRequest(deviceID string) (*models.SketchRequest, error) {
	var req models.SketchRequest
	if err := r.db.Preload("Topic").
		Where("device_id = ?", deviceID).
		Order("request_time DESC").
		First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *Repo) RequestsByDevice(deviceID string) ([]models.SketchRequest, error) {
	var out []models.SketchRequest
	err := r.db.Preload("Topic").
		Where("device_id = ?", deviceID).
		Order("request_time DESC").
		Find(&out).Error
	return out, err
}
