// Package publish notifies downstream consumers when a pipeline tier lands.
package publish

import "context"

// Publisher pushes completion events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// TierEvent is the payload published when a record-set artifact is written.
type TierEvent struct {
	RunName   string `json:"run_name"`
	Tier      string `json:"tier"`
	URI       string `json:"uri"`
	Records   int    `json:"records"`
	Failures  int    `json:"failures"`
	Timestamp string `json:"timestamp"`
}
