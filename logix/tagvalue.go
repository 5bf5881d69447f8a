package logix

import (
	"time"

	"github.com/amrhady2/go-logix-cip/cip"
)

// TagValue is a timestamped snapshot of one tag read, the unit the poll
// loop fans out to publish sinks and the snapshot cache.
type TagValue struct {
	Name      string
	Value     interface{}
	Type      cip.CipType
	Timestamp time.Time
}

// Snapshot reads every tag in names and returns one TagValue per
// successfully read tag; a tag whose read failed is omitted rather than
// reported, since the poll loop's job is to keep moving.
func (c *Client) Snapshot(names []string) []TagValue {
	results, err := c.ReadTagMulti(names)
	if err != nil {
		return nil
	}
	now := time.Now()
	values := make([]TagValue, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		values = append(values, TagValue{Name: r.Name, Value: r.Value, Type: r.Type, Timestamp: now})
	}
	return values
}
