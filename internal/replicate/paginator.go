package replicate

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dbsmedya/aptemsync/internal/state"
)

// paginator computes request parameters for successive pages and advances
// from data observed in the previous response. Advancement is therefore
// strictly sequential: no request can be built before the prior page is
// parsed.
type paginator interface {
	// apply sets the strategy's query parameters for the next request.
	apply(query url.Values)
	// advance updates the position from a parsed page.
	advance(records []map[string]interface{}) error
	// finished reports whether pagination has terminated.
	finished() bool
	// cursor returns the persistable position, if one exists yet.
	cursor() (state.Cursor, bool)
}

// offsetPaginator pages by integer skip. The next offset is the previous
// offset plus the number of records actually returned; a short page is the
// last page.
type offsetPaginator struct {
	pageSize int
	offset   int64
	done     bool
}

func (p *offsetPaginator) apply(query url.Values) {
	if p.offset > 0 {
		query.Set("$skip", strconv.FormatInt(p.offset, 10))
	}
}

func (p *offsetPaginator) advance(records []map[string]interface{}) error {
	p.offset += int64(len(records))
	if len(records) < p.pageSize {
		p.done = true
	}
	return nil
}

func (p *offsetPaginator) finished() bool {
	return p.done
}

func (p *offsetPaginator) cursor() (state.Cursor, bool) {
	return state.OffsetCursor(p.offset), true
}

// cursorPaginator pages by replication-key value. The first request filters
// inclusively (ge) from the persisted or configured start; every subsequent
// request filters strictly (gt) from the last record's replication-key
// value in the previous response. The server does not guarantee stable page
// boundaries under this ordering, so advancement is data-driven, never
// arithmetic.
type cursorPaginator struct {
	key      string
	pageSize int
	start    string // inclusive lower bound for the first request; may be empty
	lastSeen string // replication-key value of the last record consumed
	done     bool
}

func (p *cursorPaginator) apply(query url.Values) {
	query.Set("$orderby", p.key)

	if p.lastSeen != "" {
		query.Set("$filter", fmt.Sprintf("%s gt %s", p.key, p.lastSeen))
	} else if p.start != "" {
		query.Set("$filter", fmt.Sprintf("%s ge %s", p.key, p.start))
	}
}

func (p *cursorPaginator) advance(records []map[string]interface{}) error {
	if len(records) == 0 {
		p.done = true
		return nil
	}

	last, err := replicationValue(records[len(records)-1], p.key)
	if err != nil {
		return err
	}

	// A cursor that fails to move forward would repeat the same filter
	// forever; stop instead.
	if p.lastSeen != "" && !timestampAdvanced(p.lastSeen, last) {
		p.done = true
		return nil
	}

	p.lastSeen = last
	if len(records) < p.pageSize {
		p.done = true
	}
	return nil
}

func (p *cursorPaginator) finished() bool {
	return p.done
}

func (p *cursorPaginator) cursor() (state.Cursor, bool) {
	if p.lastSeen == "" {
		return state.Cursor{}, false
	}
	return state.TimestampCursor(p.lastSeen), true
}

// replicationValue reads the replication-key value of a record as a string.
func replicationValue(record map[string]interface{}, key string) (string, error) {
	raw, ok := record[key]
	if !ok {
		return "", fmt.Errorf("record is missing replication key %q", key)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("replication key %q has non-string value %v", key, raw)
	}
	return value, nil
}

// timestampAdvanced reports whether next is strictly after prev.
//
// Timestamps are sometimes returned with different millisecond grains, so a
// lexicographic comparison can misorder values that are chronologically
// ordered ("...52.68Z" vs "...52.6880167Z"). Compare parsed times when both
// sides parse, falling back to string comparison otherwise.
func timestampAdvanced(prev, next string) bool {
	prevTime, prevErr := parseTimestamp(prev)
	nextTime, nextErr := parseTimestamp(next)
	if prevErr == nil && nextErr == nil {
		return nextTime.After(prevTime)
	}
	return next > prev
}

// timestampLayouts are the wire formats observed for replication-key values.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
