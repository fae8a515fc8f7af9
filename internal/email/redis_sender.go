package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"dlnapm/pmpr/internal/config"
)

// RedisSender implements the Sender interface by storing emails in Redis.
// Used by end-to-end tests to fish outgoing mail back out via the service API.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a new RedisSender
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{
		client: client,
		cfg:    cfg,
	}
}

// Send stores a representation of the email in Redis instead of sending it via SMTP.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	// Classify by subject so tests can look up a specific kind of mail per recipient.
	actionType := "unknown"
	if strings.Contains(subject, "invited you") {
		actionType = "share_invitation"
	} else if strings.Contains(subject, "Monthly statement") {
		actionType = "monthly_statement"
	} else if strings.Contains(subject, "export is ready") {
		actionType = "export_ready"
	}

	// Key off the first recipient; outgoing mail here is effectively single-recipient.
	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	emailData := map[string]interface{}{
		"to":         strings.Join(to, ", "),
		"from":       s.cfg.SmtpFromAddress,
		"subject":    subject,
		"body":       string(rawMessage),
		"sent_at":    time.Now().UTC().Format(time.RFC3339Nano),
		"actionType": actionType,
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := fmt.Sprintf("mockemail:%s:%s", primaryTo, actionType)
	ttl := 5 * time.Minute

	err = s.client.Set(ctx, key, jsonData, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock email stored in Redis key '%s' (TTL: %v, To: %s, Subject: %s)", key, ttl, strings.Join(to, ", "), subject)
	return nil
}
