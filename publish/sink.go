// Package publish defines the telemetry sink contract shared by the
// mqtt and kafka sub-packages; the poll loop in cmd/cipctl fans one
// []logix.TagValue snapshot out to every configured sink.
package publish

import "github.com/amrhady2/go-logix-cip/logix"

// Sink publishes one poll cycle's tag values for a named PLC.
type Sink interface {
	Publish(plcName string, values []logix.TagValue) error
	Close() error
}

// Message is a per-tag JSON envelope with a Unix-millisecond timestamp.
// The mqtt and kafka sinks do not encode this type; each builds its own
// per-tag payload.
type Message struct {
	Value     interface{} `json:"value"`
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
}
