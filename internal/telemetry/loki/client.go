// Package loki pushes audit events to Grafana Loki's v1 push API.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	auditdomain "github.com/jfkeci/job-board-sub000/internal/audit/domain"
)

// JobLabel is the job label on every stream pushed by this service.
const JobLabel = "jobboard-auth"

const defaultTimeout = 10 * time.Second

// ErrNoBaseURL is returned by NewClient for an empty Loki URL.
var ErrNoBaseURL = errors.New("loki: base URL is empty")

// labelSanitize matches characters dropped from label values.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:.]`)

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// Entry is one log line and the labels of the stream it belongs to.
type Entry struct {
	Time   time.Time
	Line   string
	Labels map[string]string
}

// EntryFromAuditJSON builds an Entry from an audit event as written to Kafka. Tenant, action and
// outcome become labels; user and session ids stay in the line since they are unbounded.
// Unparseable input is kept as the line with the current time and no extra labels.
func EntryFromAuditJSON(raw []byte) Entry {
	e := Entry{Time: time.Now().UTC(), Line: string(raw), Labels: map[string]string{}}
	var ev auditdomain.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return e
	}
	if ev.TenantID != "" {
		e.Labels["tenant_id"] = ev.TenantID
	}
	if ev.Action != "" {
		e.Labels["action"] = string(ev.Action)
	}
	if ev.Outcome != "" {
		e.Labels["outcome"] = string(ev.Outcome)
	}
	if !ev.CreatedAt.IsZero() {
		e.Time = ev.CreatedAt
	}
	return e
}

// Client pushes entries to one Loki instance.
type Client struct {
	pushURL string
	http    *http.Client
}

// NewClient returns a Client for baseURL (e.g. http://localhost:3100). A nil httpClient gets a
// client with a 10s timeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{pushURL: strings.TrimSuffix(baseURL, "/") + "/loki/api/v1/push", http: httpClient}, nil
}

// Push sends entries in one request, grouping entries with equal labels into one stream.
// Returns an error if the request fails or Loki answers non-2xx.
func (c *Client) Push(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	payload, err := json.Marshal(buildRequest(entries))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pushURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}

func buildRequest(entries []Entry) PushRequest {
	var (
		order   []string
		streams = map[string]*Stream{}
	)
	for _, e := range entries {
		labels := streamLabels(e.Labels)
		key := labelKey(labels)
		s, ok := streams[key]
		if !ok {
			s = &Stream{Stream: labels}
			streams[key] = s
			order = append(order, key)
		}
		s.Values = append(s.Values, []string{strconv.FormatInt(e.Time.UnixNano(), 10), e.Line})
	}
	req := PushRequest{Streams: make([]Stream, 0, len(order))}
	for _, key := range order {
		req.Streams = append(req.Streams, *streams[key])
	}
	return req
}

func streamLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		if sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_"); sanitized != "" {
			out[k] = sanitized
		}
	}
	out["job"] = JobLabel
	return out
}

func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}
