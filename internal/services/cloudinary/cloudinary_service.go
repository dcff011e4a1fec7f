package cloudinary

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	cld "github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/config"
	"github.com/rajivgeraev/sendix-api/internal/models"
)

// CloudinaryService предоставляет методы для работы с Cloudinary:
// подписанные параметры для загрузки с клиента и выгрузку вложений чата
type CloudinaryService struct {
	cfg          *config.Config
	client       *cld.Cloudinary
	uploadFolder string
}

var _ brokerage.AttachmentStore = (*CloudinaryService)(nil)

// NewCloudinaryService создает новый экземпляр CloudinaryService
func NewCloudinaryService(cfg *config.Config) (*CloudinaryService, error) {
	s := &CloudinaryService{
		cfg:          cfg,
		uploadFolder: cfg.CloudinaryConfig.UploadFolder,
	}
	if !cfg.CloudinaryConfig.Enabled() {
		return s, nil
	}

	client, err := cld.NewFromParams(cfg.CloudinaryConfig.CloudName, cfg.CloudinaryConfig.APIKey, cfg.CloudinaryConfig.APISecret)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Cloudinary: %w", err)
	}
	client.Config.URL.Secure = true
	s.client = client
	return s, nil
}

// Enabled сообщает, настроена ли выгрузка
func (s *CloudinaryService) Enabled() bool {
	return s.client != nil
}

// GenerateSignature создаёт подпись параметров загрузки
func (s *CloudinaryService) GenerateSignature(params url.Values) (string, error) {
	return api.SignParameters(params, s.cfg.CloudinaryConfig.APISecret)
}

// GenerateUploadParams создаёт параметры для загрузки вложений с клиента
func (s *CloudinaryService) GenerateUploadParams(c fiber.Ctx) error {
	if !s.Enabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Загрузка файлов не настроена"})
	}

	// Вложения группируются по предложению
	folder := s.uploadFolder
	if proposalID := c.Query("proposal_id"); proposalID != "" {
		folder = folder + "/" + proposalID
	}

	// Текущий timestamp
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	// Параметры для подписи
	params := url.Values{
		"folder":    {folder},
		"timestamp": {timestamp},
	}

	signature, err := s.GenerateSignature(params)
	if err != nil {
		log.Printf("Ошибка подписи параметров Cloudinary: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Не удалось подписать параметры"})
	}

	return c.JSON(fiber.Map{
		"timestamp":  timestamp,
		"signature":  signature,
		"folder":     folder,
		"api_key":    s.cfg.CloudinaryConfig.APIKey,
		"cloud_name": s.cfg.CloudinaryConfig.CloudName,
	})
}

// StoreAttachment выгружает data URI в Cloudinary и возвращает вложение со ссылкой.
// Ссылки (URL) возвращаются без изменений.
func (s *CloudinaryService) StoreAttachment(ctx context.Context, threadID string, a models.Attachment) (models.Attachment, error) {
	if !s.Enabled() || !strings.HasPrefix(a.Data, "data:") {
		return a, nil
	}

	resp, err := s.client.Upload.Upload(ctx, a.Data, uploader.UploadParams{
		Folder:       s.uploadFolder + "/" + threadID,
		PublicID:     uuid.NewString(),
		ResourceType: "auto",
	})
	if err != nil {
		return a, fmt.Errorf("ошибка загрузки в Cloudinary: %w", err)
	}
	if resp.Error.Message != "" {
		return a, fmt.Errorf("ошибка загрузки в Cloudinary: %s", resp.Error.Message)
	}

	a.URL = resp.SecureURL
	a.Data = ""
	return a, nil
}
