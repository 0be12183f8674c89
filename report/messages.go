package report

import (
	"strings"
	"time"
)

// Message keys the report layer resolves. Everything else about
// i18n belongs to the owner of the MessageResolver.
const (
	timezoneEnabledKey = "timezone.enabled"
	graphFontKey       = "graph.font"
	noDataLine1Key     = "graph.nodataline1"
	noDataLine2Key     = "graph.nodataline2"
)

// MessageResolver looks up a configured message, falling back to
// the given default when the key is absent.
type MessageResolver interface {
	GetMessage(key, def string) string
}

// MessageMap is the simplest MessageResolver: a flat key/value map,
// typically decoded straight from the JSON config file.
type MessageMap map[string]string

func (m MessageMap) GetMessage(key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

// TimezoneInfo carries the two offsets a timezone contributes to
// display-time arithmetic.
type TimezoneInfo struct {
	RawOffset  time.Duration
	DSTSavings time.Duration
}

// TimezoneOffset computes the client display offset relative to the
// server. It applies only when the timezone feature flag is enabled
// in the message configuration; otherwise the offset is zero.
func TimezoneOffset(m MessageResolver, client, server TimezoneInfo) time.Duration {
	if !strings.EqualFold(m.GetMessage(timezoneEnabledKey, "false"), "true") {
		return 0
	}
	return (client.RawOffset - client.DSTSavings) - (server.RawOffset - server.DSTSavings)
}
