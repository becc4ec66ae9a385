package db

import (
	"github.com/digitalsp/ai-rakugaki-app/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const baseNegative = "low quality, lowres, displeasing, very displeasing, bad anatomy, bad hands, scan artifacts, monochrome, extra digit, fewer digits, cropped, worst quality, glitch, deformed, text, error, jpeg artifacts, watermark, unfinished, chromatic aberration, signature, username, scan, abstract"

// DefaultTopics — стартовый каталог тем для рисования.
var DefaultTopics = []models.Topic{
	{Name: "robot", Prompt: "masterpiece, cool, robot, futuristic", NegativePrompt: "missing limbs, " + baseNegative},
	{Name: "spaceship", Prompt: "masterpiece, spaceship, space, galaxy, stars", NegativePrompt: "blurry, bad lighting, " + baseNegative},
	{Name: "cat", Prompt: "masterpiece, cat, cute", NegativePrompt: "bad fur, " + baseNegative},
}

// Migrate создаёт схему devices/topics/images.
func Migrate(g *gorm.DB) error {
	return g.AutoMigrate(&models.Device{}, &models.Topic{}, &models.SketchRequest{})
}

// SeedTopics заполняет каталог тем, если он пуст. Идемпотентно:
// повторный запуск с непустой таблицей ничего не меняет.
func SeedTopics(g *gorm.DB, topics []models.Topic) error {
	var count int64
	if err := g.Model(&models.Topic{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for i := range topics {
		if topics[i].ID == "" {
			topics[i].ID = uuid.NewString()
		}
	}
	return g.Create(&topics).Error
}
