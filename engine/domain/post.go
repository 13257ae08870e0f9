// Package domain holds the core types shared across the reply pipeline.
package domain

// Post is one retrieved unit of source content eligible for a generated
// reply. It is produced by the fetcher and annotated in place with the
// generated commentary; no other field changes after creation.
//
// JSON tags match the on-disk pending-reply queue format.
type Post struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp,omitempty"` // ms Unix, 0 when the backend omits it
	Profile   string `json:"profile,omitempty"`
	Reply     string `json:"reply_text,omitempty"` // generated commentary, empty until annotated
}
