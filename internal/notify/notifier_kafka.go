package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"certledger/pkg/email"
)

// Topic feeds the mail-delivery worker. Keyed by recipient email so retries
// for one recipient stay ordered.
const Topic = "certledger.claim-notices.v1"

type claimMessage struct {
	GreetingName string    `json:"greeting_name"`
	Email        string    `json:"email"`
	CourseTitle  string    `json:"course_title"`
	IssuerName   string    `json:"issuer_name"`
	Score        float64   `json:"score"`
	TokenID      uint64    `json:"token_id"`
	ClaimToken   string    `json:"claim_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// KafkaNotifier hands notices to the delivery pipeline.
type KafkaNotifier struct {
	client *kgo.Client
}

func NewKafkaNotifier(brokers []string) (*KafkaNotifier, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect claim notifier: %w", err)
	}
	return &KafkaNotifier{client: client}, nil
}

func (n *KafkaNotifier) SendClaim(ctx context.Context, notice ClaimNotice) error {
	value, err := json.Marshal(claimMessage{
		GreetingName: email.GreetingName(notice.RecipientName, notice.RecipientEmail),
		Email:        notice.RecipientEmail,
		CourseTitle:  notice.CourseTitle,
		IssuerName:   notice.IssuerName,
		Score:        notice.Score,
		TokenID:      uint64(notice.TokenID),
		ClaimToken:   notice.ClaimToken,
		ExpiresAt:    notice.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal claim notice: %w", err)
	}
	record := &kgo.Record{
		Topic: Topic,
		Key:   []byte(notice.RecipientEmail),
		Value: value,
	}
	if err := n.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce claim notice: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() {
	n.client.Close()
}
