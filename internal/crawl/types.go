package crawl

import (
	"encoding/json"
	"time"
)

// Keyword is the unit of crawl work: a tracked search term plus its
// language, owned by a user. Keywords are read-only to the crawler.
type Keyword struct {
	ID       string `json:"id"`
	Query    string `json:"query"`
	Language string `json:"language"`
	UserID   string `json:"user_id,omitempty"`
}

// Post is the canonical, normalized representation of one matched item.
// The (KeywordID, SourceID) pair is the natural dedup key used by the
// persistence layer.
type Post struct {
	ID         string    `json:"id,omitempty"`
	KeywordID  string    `json:"keyword_id"`
	SourceID   string    `json:"source_id"`
	Text       string    `json:"text"`
	LikeCount  int64     `json:"like_count"`
	ShareCount int64     `json:"share_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// RawItem is one unnormalized search API item. The API returns several
// inconsistent shapes (truncated text, extended text, reshare wrappers),
// so every field beyond the id is optional.
//
// Source ids exceed 32-bit range; ID is decoded as json.Number and IDStr
// is preferred so ids survive round-trip without precision loss.
type RawItem struct {
	ID         json.Number   `json:"id,omitempty"`
	IDStr      string        `json:"id_str,omitempty"`
	Text       string        `json:"text,omitempty"`
	FullText   string        `json:"full_text,omitempty"`
	Extended   *ExtendedItem `json:"extended_tweet,omitempty"`
	Reshared   *RawItem      `json:"retweeted_status,omitempty"`
	Quoted     *RawItem      `json:"quoted_status,omitempty"`
	LikeCount  *int64        `json:"favorite_count,omitempty"`
	ShareCount *int64        `json:"retweet_count,omitempty"`
	CreatedAt  string        `json:"created_at,omitempty"`
}

// ExtendedItem carries the untruncated text of an extended-shape item.
type ExtendedItem struct {
	FullText string `json:"full_text"`
}

// EventKind distinguishes content events from control notices on a
// live subscription.
type EventKind string

// Stream event kinds.
const (
	EventPost   EventKind = "post"
	EventNotice EventKind = "notice"
)

// StreamEvent is one pushed message on a live subscription. Item is
// populated for EventPost; Notice holds the raw control payload for
// EventNotice.
type StreamEvent struct {
	Kind   EventKind
	Item   RawItem
	Notice json.RawMessage
}
