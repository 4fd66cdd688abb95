// internal/notify/service.go
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stylist-pipeline/internal/common/config"
	"stylist-pipeline/internal/common/validation"
	"stylist-pipeline/internal/models"

	"github.com/google/uuid"
)

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Define interfaces for mocking
type EmailSender interface {
	SendPlainEmail(ctx context.Context, from, to, subject, body string) error
}

type SMSSender interface {
	SendTextMessage(ctx context.Context, phone, message string) error
}

// Delivery is the receipt of one notification attempt.
type Delivery struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent", "failed", "disabled"
	SentAt         string `json:"sentAt"` // ISO 8601
	EmailSent      bool   `json:"emailSent"`
	SMSSent        bool   `json:"smsSent"`
}

// Service tells the user how their styling run ended. Delivery is best
// effort and never feeds back into the pipeline's outcome.
type Service struct {
	config config.NotificationConfig
	email  EmailSender
	sms    SMSSender
	logger Logger
}

func NewService(cfg config.NotificationConfig, email EmailSender, sms SMSSender, log Logger) *Service {
	return &Service{
		config: cfg,
		email:  email,
		sms:    sms,
		logger: log.With(map[string]interface{}{"component": "notifier"}),
	}
}

// NotifyResult sends a short summary of a finished run to the profile's
// contact addresses.
func (s *Service) NotifyResult(ctx context.Context, profile *models.UserProfile, result *models.AnalysisResult) *Delivery {
	delivery := &Delivery{
		NotificationID: uuid.New().String(),
		Status:         StatusDisabled,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}

	template, exists := templates[result.Status]
	if !exists {
		s.logger.Warn("no template for result status", map[string]interface{}{
			"status": string(result.Status),
		})
		return delivery
	}

	data := map[string]interface{}{
		"displayName": displayName(profile),
		"productName": productName(result),
		"fitScore":    result.FitScore,
		"requestId":   result.RequestID,
	}
	subject := renderTemplate(template.subject, data)
	body := renderTemplate(template.body, data)

	if s.config.Email.Enabled && validation.ValidateEmail(profile.Email) {
		if err := s.sendEmail(ctx, profile.Email, subject, body); err != nil {
			s.logger.Error("email send failed", map[string]interface{}{
				"requestId": result.RequestID,
				"error":     err.Error(),
			})
			delivery.Status = StatusFailed
			return delivery
		}
		delivery.EmailSent = true
	}

	if s.shouldText(result.Status) && validation.ValidatePhone(profile.Phone) {
		if err := s.sendSMS(ctx, profile.Phone, body); err != nil {
			s.logger.Error("SMS send failed", map[string]interface{}{
				"requestId": result.RequestID,
				"error":     err.Error(),
			})
			delivery.Status = StatusFailed
			return delivery
		}
		delivery.SMSSent = true
	}

	if delivery.EmailSent || delivery.SMSSent {
		delivery.Status = StatusSent
	}

	s.logger.Info("notification processed", map[string]interface{}{
		"requestId": result.RequestID,
		"status":    delivery.Status,
	})
	return delivery
}

func (s *Service) shouldText(status models.ResultStatus) bool {
	if !s.config.SMS.Enabled {
		return false
	}
	if s.config.SMS.OnFailureOnly {
		return status == models.StatusFailed
	}
	return true
}

func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	return s.email.SendPlainEmail(ctx, s.config.Email.FromEmail, to, subject, body)
}

func (s *Service) sendSMS(ctx context.Context, to, message string) error {
	return s.sms.SendTextMessage(ctx, to, message)
}

type messageTemplate struct {
	subject string
	body    string
}

var templates = map[models.ResultStatus]messageTemplate{
	models.StatusComplete: {
		subject: "Your try-on for {{productName}} is ready",
		body:    "Hi {{displayName}}, we styled {{productName}} against your wardrobe. Fit score: {{fitScore}}/100. Open the app to see all four angles.",
	},
	models.StatusPartial: {
		subject: "Your try-on for {{productName}} is ready",
		body:    "Hi {{displayName}}, we styled {{productName}} against your wardrobe. Fit score: {{fitScore}}/100. A few angles did not render; the front view is waiting in the app.",
	},
	models.StatusFailed: {
		subject: "We could not style {{productName}}",
		body:    "Hi {{displayName}}, the styling run for {{productName}} did not finish. Please try capturing the page again.",
	},
}

func displayName(profile *models.UserProfile) string {
	if profile.DisplayName != "" {
		return profile.DisplayName
	}
	return "there"
}

func productName(result *models.AnalysisResult) string {
	if result.Product != nil && result.Product.Name != "" {
		return result.Product.Name
	}
	return "your item"
}

// Simplified template rendering with placeholder removal for missing values
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if i, ok := v.(int); ok {
			value = fmt.Sprintf("%d", i)
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// Remove any remaining placeholders (missing values)
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
