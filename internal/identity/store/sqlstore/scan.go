package sqlstore

import (
	"fmt"
	"strings"
	"time"
)

// timeLayouts are tried, in order, when a driver hands back a time as text.
// SQLite does this for aggregates such as MAX(started_at).
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// nullTime scans time.Time, text or NULL into a UTC time.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n = nullTime{}
		return nil
	case time.Time:
		*n = nullTime{Time: v.UTC(), Valid: true}
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into time", src)
	}
}

func (n *nullTime) parse(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*n = nullTime{Time: t.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("sqlstore: unrecognised time %q", s)
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func splitFields(s string) []string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return nil
	}
	return f
}

func joinFields(f []string) string {
	return strings.Join(f, " ")
}

// rangeClause appends started/created bounds for column to where.
func rangeClause(where []string, args []any, column string, from, to *time.Time) ([]string, []any) {
	if from != nil {
		where = append(where, column+" >= ?")
		args = append(args, ts(*from))
	}
	if to != nil {
		where = append(where, column+" <= ?")
		args = append(args, ts(*to))
	}
	return where, args
}

// scanner is *sql.Row or *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
