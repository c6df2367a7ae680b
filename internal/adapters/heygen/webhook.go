package heygen

import (
	"encoding/json"
	"sync"
	"time"
)

// Receipt is one out-of-band vendor notification, keyed by the vendor's
// task id.
type Receipt struct {
	TaskID     string          `json:"task_id"`
	Status     string          `json:"status"`
	AssetURL   string          `json:"asset_url,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// WebhookStore keeps vendor push notifications for later correlation with
// the polling loop. Webhook delivery is a best-effort optimization; polling
// stays authoritative, so an unparseable payload is stored as-is and never
// rejected.
type WebhookStore struct {
	mu       sync.RWMutex
	receipts map[string]Receipt
}

func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		receipts: make(map[string]Receipt),
	}
}

type webhookPayload struct {
	EventType string `json:"event_type"`
	EventData struct {
		VideoID  string `json:"video_id"`
		VideoURL string `json:"url"`
	} `json:"event_data"`
	// flat variants some API versions send
	VideoID  string `json:"video_id"`
	VideoURL string `json:"video_url"`
	Status   string `json:"status"`
}

// Record parses what it can from the raw payload and stores the receipt.
// Returns the receipt and whether a task id could be correlated.
func (s *WebhookStore) Record(payload []byte) (Receipt, bool) {
	receipt := Receipt{
		ReceivedAt: time.Now(),
		Payload:    json.RawMessage(payload),
	}

	var parsed webhookPayload
	if err := json.Unmarshal(payload, &parsed); err == nil {
		receipt.TaskID = parsed.EventData.VideoID
		if receipt.TaskID == "" {
			receipt.TaskID = parsed.VideoID
		}
		receipt.Status = parsed.EventType
		if receipt.Status == "" {
			receipt.Status = parsed.Status
		}
		receipt.AssetURL = parsed.EventData.VideoURL
		if receipt.AssetURL == "" {
			receipt.AssetURL = parsed.VideoURL
		}
	}

	if receipt.TaskID == "" {
		return receipt, false
	}

	s.mu.Lock()
	s.receipts[receipt.TaskID] = receipt
	s.mu.Unlock()
	return receipt, true
}

func (s *WebhookStore) Get(taskID string) (Receipt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	receipt, ok := s.receipts[taskID]
	return receipt, ok
}
