package sketch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/digitalsp/ai-rakugaki-app/internal/generator"
	"github.com/digitalsp/ai-rakugaki-app/internal/imaging"
	"github.com/digitalsp/ai-rakugaki-app/internal/logs"
	"github.com/digitalsp/ai-rakugaki-app/internal/models"
)

// ErrRequestMismatch — запрос не принадлежит указанному устройству.
var ErrRequestMismatch = errors.New("request/device mismatch")

// Notifier delivers a best-effort push message to a device.
type Notifier interface {
	Send(deviceID string, message []byte)
}

type Options struct {
	SavedDir      string
	GeneratedDir  string
	PublicBaseURL string
	// GenTimeout bounds a single collaborator call; a hung call is cancelled
	// and handled like any other generation failure.
	GenTimeout time.Duration
}

// Service wires the entity store, the generation collaborator and the push
// channel into the register → topic → canvas → generate workflow. It owns no
// durable state of its own.
type Service struct {
	repo   *Repo
	gen    generator.Generator
	notify Notifier
	pool   *Pool
	opts   Options
}

func NewService(repo *Repo, gen generator.Generator, notify Notifier, workers, backlog int, opts Options) *Service {
	if opts.GenTimeout <= 0 {
		opts.GenTimeout = 5 * time.Minute
	}
	s := &Service{repo: repo, gen: gen, notify: notify, opts: opts}
	s.pool = NewPool(workers, backlog, s.generate)
	return s
}

// Start/Stop управляют пулом фоновой генерации.
func (s *Service) Start(ctx context.Context) { s.pool.Start(ctx) }
func (s *Service) Stop()                     { s.pool.Stop() }

type Registration struct {
	DeviceID  string
	Topic     string
	RequestID string
}

// RegisterDevice создаёт устройство, назначает случайную тему и первый запрос.
func (s *Service) RegisterDevice() (*Registration, error) {
	topic, err := s.repo.GetRandomTopic()
	if err != nil {
		return nil, err
	}
	device, err := s.repo.CreateDevice()
	if err != nil {
		return nil, err
	}
	req, err := s.repo.CreateRequest(device.ID, topic.ID, nil)
	if err != nil {
		return nil, err
	}
	logs.Logger.WithFields(map[string]any{
		"device_id": device.ID, "topic": topic.Name,
	}).Info("device registered")
	return &Registration{DeviceID: device.ID, Topic: topic.Name, RequestID: req.ID}, nil
}

// VerifyDevice проверяет устройство и возвращает тему его последнего запроса.
// Если запросов нет (например, данные были зачищены вручную), устройству
// назначается новая тема и создаётся свежий запрос.
func (s *Service) VerifyDevice(deviceID string) (*Registration, error) {
	if _, err := s.repo.GetDevice(deviceID); err != nil {
		return nil, err
	}
	latest, err := s.repo.LatestRequest(deviceID)
	if errors.Is(err, ErrRequestNotFound) {
		return s.assignTopic(deviceID)
	}
	if err != nil {
		return nil, err
	}
	topicName := ""
	if latest.Topic != nil {
		topicName = latest.Topic.Name
	}
	return &Registration{DeviceID: deviceID, Topic: topicName, RequestID: latest.ID}, nil
}

// AssignNewTopic начинает новый цикл генерации: случайная тема + новый запрос.
func (s *Service) AssignNewTopic(deviceID string) (*Registration, error) {
	if _, err := s.repo.GetDevice(deviceID); err != nil {
		return nil, err
	}
	return s.assignTopic(deviceID)
}

func (s *Service) assignTopic(deviceID string) (*Registration, error) {
	topic, err := s.repo.GetRandomTopic()
	if err != nil {
		return nil, err
	}
	req, err := s.repo.CreateRequest(deviceID, topic.ID, nil)
	if err != nil {
		return nil, err
	}
	return &Registration{DeviceID: deviceID, Topic: topic.Name, RequestID: req.ID}, nil
}

// SubmitCanvas сохраняет картинку с холста и ставит генерацию в очередь.
// Ответ возвращается сразу: результат придёт по push-каналу, синхронно
// клиент получает только имя сохранённого файла.
func (s *Service) SubmitCanvas(deviceID, requestID, imageData string, negativeOverride *string) (string, error) {
	req, err := s.repo.GetRequest(requestID)
	if err != nil {
		return "", err
	}
	if req.DeviceID != deviceID {
		return "", ErrRequestMismatch
	}
	if req.CanvasFilename != nil {
		return "", ErrCanvasAlreadySet
	}

	raw, err := imaging.DecodeDataURL(imageData)
	if err != nil {
		return "", err
	}
	filename, err := imaging.Save(raw, s.opts.SavedDir)
	if err != nil {
		return "", fmt.Errorf("save canvas: %w", err)
	}
	if _, err := s.repo.SetCanvasFilename(requestID, filename); err != nil {
		// проигранная гонка записи — файл-сирота не должен остаться
		if errors.Is(err, ErrCanvasAlreadySet) {
			_ = imaging.Remove(s.opts.SavedDir, filename)
		}
		return "", err
	}
	if negativeOverride != nil {
		if err := s.repo.SetNegativePrompt(requestID, *negativeOverride); err != nil {
			return "", err
		}
	}

	if err := s.pool.Enqueue(requestID, deviceID); err != nil {
		return "", err
	}
	logs.Logger.WithFields(map[string]any{
		"device_id": deviceID, "request_id": requestID, "file": filename,
	}).Info("canvas saved, generation queued")
	return filename, nil
}

// ListRequests возвращает все запросы устройства (новые первыми).
// Пустой список при существующем устройстве — успех, не ошибка.
func (s *Service) ListRequests(deviceID string) ([]models.SketchRequest, error) {
	if _, err := s.repo.GetDevice(deviceID); err != nil {
		return nil, err
	}
	return s.repo.RequestsByDevice(deviceID)
}

func (s *Service) ListDevices() ([]models.Device, error) {
	return s.repo.ListDevices()
}

type notification struct {
	CanvasImageURL    string `json:"canvasImageUrl"`
	GeneratedImageURL string `json:"generatedImageUrl"`
	Topic             string `json:"topic"`
}

// generate — фоновая задача. К этому моменту клиент уже получил ответ на
// save-canvas, поэтому все сбои здесь завершаются молча: лог, статус failed,
// никакого уведомления. Клиент узнаёт о провале только опросом /images.
func (s *Service) generate(ctx context.Context, requestID, deviceID string) {
	log := logs.Logger.WithFields(map[string]any{
		"request_id": requestID, "device_id": deviceID,
	})

	req, err := s.repo.GetRequest(requestID)
	if err != nil {
		log.Errorf("generation aborted: %v", err)
		return
	}
	if req.Topic == nil {
		log.Error("generation aborted: request has no topic")
		return
	}
	if req.CanvasFilename == nil {
		log.Error("generation aborted: canvas not uploaded")
		return
	}

	canvas, err := imaging.Load(s.opts.SavedDir, *req.CanvasFilename)
	if err != nil {
		log.Errorf("generation aborted: canvas file: %v", err)
		return
	}

	negative := req.Topic.NegativePrompt
	if req.NegativePrompt != nil {
		negative = *req.NegativePrompt
	}

	_ = s.repo.SetStatus(requestID, models.StatusGenerating)
	log.Infof("generation started: prompt=%q", req.Topic.Prompt)

	genCtx, cancel := context.WithTimeout(ctx, s.opts.GenTimeout)
	defer cancel()
	output, err := s.gen.Generate(genCtx, canvas, req.Topic.Prompt, negative)
	if err != nil {
		log.Errorf("generation failed: %v", err)
		_ = s.repo.SetStatus(requestID, models.StatusFailed)
		return
	}

	generated, err := imaging.Save(output, s.opts.GeneratedDir)
	if err != nil {
		log.Errorf("save generated image: %v", err)
		_ = s.repo.SetStatus(requestID, models.StatusFailed)
		return
	}
	if _, err := s.repo.SetGeneratedFilename(requestID, generated); err != nil {
		log.Errorf("update generated filename: %v", err)
		_ = s.repo.SetStatus(requestID, models.StatusFailed)
		return
	}
	_ = s.repo.SetStatus(requestID, models.StatusComplete)

	msg, err := json.Marshal(notification{
		CanvasImageURL:    s.opts.PublicBaseURL + "/saved-images/" + *req.CanvasFilename,
		GeneratedImageURL: s.opts.PublicBaseURL + "/generated-images/" + generated,
		Topic:             req.Topic.Name,
	})
	if err != nil {
		log.Errorf("marshal notification: %v", err)
		return
	}
	s.notify.Send(deviceID, msg)
	log.Infof("generation complete: %s", generated)
}
