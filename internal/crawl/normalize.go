package crawl

import (
	"strings"
	"time"
)

// createdAtLayout matches the API's native timestamp format once the
// standalone UTC-offset token has been split out.
const createdAtLayout = "Mon Jan 2 15:04:05 2006"

// Normalize converts one raw item into a canonical Post for the given
// keyword. It is a total function: malformed or missing fields degrade to
// documented defaults rather than erroring, so one bad item never aborts
// a batch. Calling it twice on identical input yields identical output.
func Normalize(keyword Keyword, item RawItem) Post {
	return Post{
		KeywordID:  keyword.ID,
		SourceID:   sourceID(item),
		Text:       resolveText(item),
		LikeCount:  counterValue(item.LikeCount),
		ShareCount: counterValue(item.ShareCount),
		CreatedAt:  parseCreatedAt(item.CreatedAt),
	}
}

// resolveText picks the longest available full text. An extended
// representation wins over the item's own full-text field, which wins over
// the same pair on a reshare/quote wrapper; the truncated base text is the
// baseline fallback and the result is never absent, only possibly empty.
func resolveText(item RawItem) string {
	if item.Extended != nil && item.Extended.FullText != "" {
		return item.Extended.FullText
	}
	if item.FullText != "" {
		return item.FullText
	}
	if inner := wrappedItem(item); inner != nil {
		if inner.Extended != nil && inner.Extended.FullText != "" {
			return inner.Extended.FullText
		}
		if inner.FullText != "" {
			return inner.FullText
		}
	}
	return item.Text
}

func wrappedItem(item RawItem) *RawItem {
	if item.Reshared != nil {
		return item.Reshared
	}
	return item.Quoted
}

// sourceID copies the external id verbatim. The string form is preferred;
// the numeric form is decoded as json.Number so ids beyond 32-bit (or
// float64) range keep every digit.
func sourceID(item RawItem) string {
	if item.IDStr != "" {
		return item.IDStr
	}
	return item.ID.String()
}

func counterValue(v *int64) int64 {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

// parseCreatedAt canonicalizes the API timestamp, e.g.
// "Mon Jan 02 15:04:05 +0000 2024". The offset appears as its own
// whitespace-delimited token; it is split out, the remaining fixed-format
// string is parsed, and the true offset is attached. Unparseable values
// degrade to the zero time.
func parseCreatedAt(value string) time.Time {
	if value == "" {
		return time.Time{}
	}

	fields := strings.Fields(value)
	loc := time.UTC
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if zone, ok := parseOffset(f); ok {
			loc = zone
			continue
		}
		kept = append(kept, f)
	}

	ts, err := time.ParseInLocation(createdAtLayout, strings.Join(kept, " "), loc)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// parseOffset recognizes a standalone RFC 822 style offset token such as
// "+0000" or "-0530".
func parseOffset(token string) (*time.Location, bool) {
	if len(token) != 5 || (token[0] != '+' && token[0] != '-') {
		return nil, false
	}
	for _, c := range token[1:] {
		if c < '0' || c > '9' {
			return nil, false
		}
	}
	hours := int(token[1]-'0')*10 + int(token[2]-'0')
	minutes := int(token[3]-'0')*10 + int(token[4]-'0')
	seconds := (hours*60 + minutes) * 60
	if token[0] == '-' {
		seconds = -seconds
	}
	if seconds == 0 {
		return time.UTC, true
	}
	return time.FixedZone(token, seconds), true
}
