package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"portfolio/internal/storage"
)

// DailyStats summarises one UTC day of assistant traffic.
type DailyStats struct {
	Date           string         `json:"date"`
	TotalExchanges int            `json:"total_exchanges"`
	UniqueSessions int            `json:"unique_sessions"`
	ByOutcome      map[string]int `json:"by_outcome"`
	ByChannel      map[string]int `json:"by_channel"`
}

// AnalyzeDailyLogs counts the events that fall on targetDate's calendar day
// in targetDate's location. Events without a user message are ignored.
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	stats := &DailyStats{
		Date:      startOfDay.Format("2006-01-02"),
		ByOutcome: make(map[string]int),
		ByChannel: make(map[string]int),
	}
	sessions := make(map[string]struct{})

	for _, ev := range events {
		if ev.Timestamp.Before(startOfDay) || !ev.Timestamp.Before(endOfDay) {
			continue
		}
		if ev.UserMessage == "" {
			continue
		}
		stats.TotalExchanges++
		sessions[ev.SessionID] = struct{}{}
		stats.ByOutcome[ev.Outcome]++
		stats.ByChannel[ev.Channel]++
	}

	stats.UniqueSessions = len(sessions)
	return stats
}

// Summary renders the stats as a short plain-text report.
func (ds *DailyStats) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Assistant usage for %s: %d exchanges across %d sessions.", ds.Date, ds.TotalExchanges, ds.UniqueSessions)
	if len(ds.ByOutcome) > 0 {
		sb.WriteString(" Outcomes: ")
		sb.WriteString(joinCounts(ds.ByOutcome))
		sb.WriteString(".")
	}
	if len(ds.ByChannel) > 0 {
		sb.WriteString(" Channels: ")
		sb.WriteString(joinCounts(ds.ByChannel))
		sb.WriteString(".")
	}
	return sb.String()
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func joinCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}
