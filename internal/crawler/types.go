package crawler

import (
	"net/http"
	"time"
)

// UI identifies which page layout a journal is served with.
type UI string

// Supported journal layouts.
const (
	UIUnknown UI = ""
	UINew     UI = "new"
	UIOld     UI = "old"
)

// JournalTask is one input journal after classification.
type JournalTask struct {
	URL  string
	Name string
	UI   UI
}

// VolumeRef points at a single volume or issue page of a journal.
type VolumeRef struct {
	Journal string
	Label   string
	URL     string
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL                   string
	Headers               http.Header
	RespectRobots         bool
	RespectRobotsProvided bool
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
	RobotsStatus RobotsStatus
	RobotsReason string
}

// RobotsStatus reports how robots.txt was resolved for a fetch.
type RobotsStatus string

// Robots probe outcomes.
const (
	RobotsStatusUnknown       RobotsStatus = ""
	RobotsStatusIndeterminate RobotsStatus = "indeterminate"
)

// ResultRecord announces a finished journal record to downstream consumers.
type ResultRecord struct {
	RunID     string    `json:"run_id"`
	Journal   string    `json:"journal"`
	Path      string    `json:"path"`
	BlobURI   string    `json:"blob_uri,omitempty"`
	Authors   int       `json:"authors"`
	SHA256    string    `json:"sha256"`
	WrittenAt time.Time `json:"written_at"`
}
