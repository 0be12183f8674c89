package episcope

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	Et "github.com/sages-health/episcope/types"
)

// AlertFrameD3 is one alert shaped for the D3 frontend: the level
// is pre-bucketed into a severity so the UI never re-derives it.
type AlertFrameD3 struct {
	Date     time.Time `json:"date"`     // data point the alert fired on
	Series   string    `json:"series"`   // accumulation label
	Count    float64   `json:"count"`    // observed value
	Level    float64   `json:"level"`    // detector level statistic
	Severity string    `json:"severity"` // "warning" or "alert"
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (v *View) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Send alert data periodically
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		frames := v.GetAlertFramesD3()
		if err := conn.WriteJSON(frames); err != nil {
			return // Connection closed
		}
	}
}

// GetAlertFramesD3 converts the alert ring into frontend frames.
func (v *View) GetAlertFramesD3() []AlertFrameD3 {
	alerts := v.AlertSnapshot()

	frames := make([]AlertFrameD3, 0, len(alerts))
	for _, a := range alerts {
		frames = append(frames, AlertFrameD3{
			Date:     a.Date,
			Series:   a.Series,
			Count:    a.Count,
			Level:    a.Level,
			Severity: SeverityForLevel(a.Level),
		})
	}
	return frames
}

// SeverityForLevel buckets a level statistic. Anything a detector
// flags is at least a warning; past twice the flag boundary it
// renders as a full alert.
func SeverityForLevel(level float64) string {
	if level >= 4.0 {
		return "alert"
	}
	return "warning"
}

func AlertCutoff(events []Et.AlertEvent, notBefore time.Time) []Et.AlertEvent {
	var recent []Et.AlertEvent
	for _, e := range events {
		if !e.Date.Before(notBefore) {
			recent = append(recent, e)
		}
	}
	return recent
}
