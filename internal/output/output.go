// Package output provides formatting utilities for CLI and HTTP output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/njt/tzmeet/internal/dateparse"
)

// ActionResponse represents the response from an action command or a rejected request.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteJSON writes a value as JSON to the writer.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatActionResponse creates an ActionResponse.
func FormatActionResponse(success bool, message string) *ActionResponse {
	return &ActionResponse{
		Success: success,
		Message: message,
	}
}

// Resolution is the human-readable view of a meeting resolution.
type Resolution struct {
	ReadableOrigin      string
	ReadableParticipant string
	MeetingTime         *int64
	EndTime             *int64
}

// PrintResolution prints a resolution for people. Absent timestamps print as "-".
func PrintResolution(w io.Writer, r Resolution) {
	fmt.Fprintf(w, "Origin: %s\n", r.ReadableOrigin)
	fmt.Fprintf(w, "Participant: %s\n", r.ReadableParticipant)
	fmt.Fprintf(w, "Calendar start: %s\n", epoch(r.MeetingTime))
	fmt.Fprintf(w, "Calendar end: %s\n", epoch(r.EndTime))
}

func epoch(sec *int64) string {
	if sec == nil {
		return "-"
	}
	return fmt.Sprintf("%d (%s)", *sec, dateparse.FormatISO8601(time.Unix(*sec, 0).UTC()))
}
