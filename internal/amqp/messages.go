package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"financeiro/internal/core"
)

// PeriodChangedMessage tells consumers that the records of a period changed.
// It carries only identifiers; consumers read the data they need.
type PeriodChangedMessage struct {
	UserID    core.ID   `json:"user_id"`
	PeriodID  core.ID   `json:"competencia_id"`
	Year      int       `json:"ano"`
	Timestamp time.Time `json:"timestamp"`
}

var errIncompleteMessage = errors.New("message without user or period")

func NewPeriodChangedMessage(userID, periodID core.ID, year int) *PeriodChangedMessage {
	return &PeriodChangedMessage{
		UserID:    userID,
		PeriodID:  periodID,
		Year:      year,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PeriodChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PeriodChangedMessageFromJSON decodes and checks a message body.
func PeriodChangedMessageFromJSON(data []byte) (*PeriodChangedMessage, error) {
	var msg PeriodChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID.IsZero() || msg.PeriodID.IsZero() {
		return nil, errIncompleteMessage
	}
	return &msg, nil
}
