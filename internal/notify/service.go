package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/xtc-labs/xtc/internal/config"
	"github.com/xtc-labs/xtc/internal/models"
)

// Notifier forwards alert records to external channels
type Notifier interface {
	SendAlert(alert *models.Alert) error
}

// Service delivers high-importance alerts via webhook and email.
// Channels are independently optional; an alert goes to every
// configured channel and channel failures are aggregated.
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements Notifier
var _ Notifier = (*Service)(nil)

// webhookMessage is the JSON payload posted to the alert webhook
type webhookMessage struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AlertType   string `json:"alert_type"`
	Coin        string `json:"coin,omitempty"`
	Importance  int    `json:"importance"`
	Timestamp   string `json:"timestamp"`
}

// NewService creates a new alert notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// Enabled reports whether at least one channel is configured
func (s *Service) Enabled() bool {
	return s.config.AlertWebhookURL != "" || s.config.AlertEmail != ""
}

// SendAlert delivers one alert via every configured channel
func (s *Service) SendAlert(alert *models.Alert) error {
	var errors []string

	if s.config.AlertWebhookURL != "" {
		if err := s.sendToWebhook(alert); err != nil {
			logrus.Errorf("Failed to send webhook notification: %v", err)
			errors = append(errors, fmt.Sprintf("webhook: %v", err))
		} else {
			logrus.Infof("Sent alert %q to webhook", alert.Title)
		}
	}

	if s.config.AlertEmail != "" {
		if err := s.sendEmail(alert); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("email: %v", err))
		} else {
			logrus.Infof("Sent alert %q via email", alert.Title)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToWebhook(alert *models.Alert) error {
	message := &webhookMessage{
		Title:       alert.Title,
		Description: alert.Description,
		AlertType:   alert.Type,
		Coin:        alert.Coin,
		Importance:  alert.Importance,
		Timestamp:   alert.CreatedAt.Format(time.RFC3339),
	}

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.AlertWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to post webhook message: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) sendEmail(alert *models.Alert) error {
	subject := fmt.Sprintf("[XTC] %s", alert.Title)
	body := s.buildEmailText(alert)

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.AlertEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (s *Service) buildEmailText(alert *models.Alert) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("%s\n", alert.Title))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", alert.CreatedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString(fmt.Sprintf("Type: %s\n", alert.Type))
	if alert.Coin != "" {
		text.WriteString(fmt.Sprintf("Coin: %s\n", alert.Coin))
	}
	text.WriteString(fmt.Sprintf("Importance: %d/%d\n\n", alert.Importance, models.ImportanceMax))

	text.WriteString(alert.Description)
	text.WriteString("\n\n---\nThis alert was generated automatically by XTC.\n")

	return text.String()
}
