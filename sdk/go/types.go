package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"loyaltykit/core"
	"loyaltykit/ranking"
)

// Stats is the per-track view returned by the API.
type Stats = core.GamificationStats

// Notification is one queued or streamed engine notification.
type Notification = core.Notification

// Profile holds the ranking dimensions of a participant.
type Profile = core.Profile

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// RankingQuery selects a global or partitioned ranking. Empty By is global;
// By without Key returns every group.
type RankingQuery struct {
	By    ranking.Dimension
	Key   string
	Limit int
}

// Rankings is the /rankings response.
type Rankings struct {
	Track   core.Track        `json:"track"`
	By      ranking.Dimension `json:"by,omitempty"`
	Key     string            `json:"key,omitempty"`
	Entries []ranking.Entry   `json:"entries,omitempty"`
	Groups  []ranking.Group   `json:"groups,omitempty"`
}

// APIError is a non-2xx API response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.Status)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.Status, e.Code, e.Message)
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyParticipantID is returned when participant id is empty.
var ErrEmptyParticipantID = errors.New("participant id is required")
