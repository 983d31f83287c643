package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trapwatch/trapwatch/internal/visits"
)

// VisitMessage is the JSON payload published for a visit.
type VisitMessage struct {
	Key string `json:"key"`
	visits.Visit
}

// VisitPublisher publishes visits under a base topic.
type VisitPublisher struct {
	client Client
	topic  string
}

// NewVisitPublisher creates a publisher for baseTopic.
func NewVisitPublisher(c Client, baseTopic string) *VisitPublisher {
	return &VisitPublisher{client: c, topic: strings.TrimSuffix(baseTopic, "/")}
}

// VisitTopic returns {base}/station/{id}/visit.
func VisitTopic(base string, stationID int64) string {
	return fmt.Sprintf("%s/station/%d/visit", strings.TrimSuffix(base, "/"), stationID)
}

// PublishVisit publishes v, connecting first when needed.
func (p *VisitPublisher) PublishVisit(ctx context.Context, v visits.Visit) error {
	payload, err := json.Marshal(VisitMessage{Key: v.Key(), Visit: v})
	if err != nil {
		return fmt.Errorf("encode visit: %w", err)
	}
	if !p.client.IsConnected() {
		if err := p.client.Connect(ctx); err != nil {
			return err
		}
	}
	return p.client.Publish(ctx, VisitTopic(p.topic, v.StationID), payload)
}

// Close disconnects the underlying client.
func (p *VisitPublisher) Close() {
	p.client.Disconnect()
}
