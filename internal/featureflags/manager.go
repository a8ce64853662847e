// Package featureflags gates optional API surfaces from a FEATURE_FLAGS string
// such as "server_ingest=on,caption_search=25%".
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Flag names evaluated by the API.
const (
	// ServerIngest enables multipart uploads that run the ingestion pipeline in-process.
	ServerIngest = "server_ingest"
	// CaptionSearch routes caption search to the search index instead of SQL.
	CaptionSearch = "caption_search"
)

// defaults apply to known flags the configuration leaves out.
var defaults = map[string]bool{
	ServerIngest:  true,
	CaptionSearch: true,
}

// rule is one parsed flag value. percent is -1 for plain on/off values and
// 0..100 for a per-user rollout.
type rule struct {
	raw     string
	on      bool
	percent int
}

func parseRule(value string) rule {
	r := rule{raw: value, percent: -1}
	switch value {
	case "on", "true", "1":
		r.on = true
	case "off", "false", "0":
	default:
		if pct, err := strconv.Atoi(strings.TrimSuffix(value, "%")); err == nil && strings.HasSuffix(value, "%") {
			r.percent = min(max(pct, 0), 100)
		}
	}
	return r
}

// Manager evaluates parsed flags. A nil Manager enables nothing.
type Manager struct {
	rules map[string]rule
}

// NewManager parses a comma-separated name=value list. Malformed entries are skipped.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		name, value = normalize(name), normalize(value)
		if !ok || name == "" || value == "" {
			continue
		}
		rules[name] = parseRule(value)
	}
	return &Manager{rules: rules}
}

// Enabled reports whether name is on for userID. Percentage rollouts bucket
// users deterministically and never enable anonymous callers below 100%.
func (m *Manager) Enabled(name, userID string) bool {
	if m == nil {
		return false
	}
	name = normalize(name)
	r, ok := m.rules[name]
	if !ok {
		return defaults[name]
	}
	switch {
	case r.percent < 0:
		return r.on
	case r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == "":
		return false
	}
	return rolloutBucket(name, userID) < r.percent
}

// Raw returns the configured values as written.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every configured and known flag for one user.
func (m *Manager) Snapshot(userID string) map[string]bool {
	out := make(map[string]bool, len(m.rules)+len(defaults))
	for name := range defaults {
		out[name] = m.Enabled(name, userID)
	}
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + userID))
	return int(h.Sum32() % 100)
}
