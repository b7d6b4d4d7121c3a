package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/ptsp-chat/internal"
)

// JSONLExporter exports sessions in JSONL format (one message per line)
type JSONLExporter struct{}

type jsonlLine struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
	internal.MessageRecord
}

// Export exports a session to JSONL format
func (e *JSONLExporter) Export(session *internal.Session, w io.Writer) error {
	enc := json.NewEncoder(w)

	for i, rec := range session.Messages.Records() {
		line := jsonlLine{SessionID: session.ID, Index: i, MessageRecord: rec}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
