package rules

import (
	"strconv"
	"strings"
	"time"
)

// sqlTimeFormat matches the snapshot's "Date Received" column so bound
// date values compare correctly as text.
const sqlTimeFormat = "2006-01-02 15:04:05"

const monthDays = 30

// fieldColumns is the closed set of queryable columns. Compiled SQL only
// ever names identifiers from this table; everything user-supplied binds
// as a value.
var fieldColumns = map[Field]string{
	FieldFrom:     `"From"`,
	FieldSubject:  `"Subject"`,
	FieldMessage:  `"Message"`,
	FieldReceived: `"Date Received"`,
}

// CompileCondition lowers one condition to a WHERE fragment and its bound
// value. ok is false when the condition cannot be compiled; callers drop
// such conditions rather than failing the rule.
func CompileCondition(c Condition, now time.Time) (fragment string, value any, ok bool) {
	field, known := NormalizeField(c.Field)
	if !known || c.Predicate == "" || c.Value == "" {
		return "", nil, false
	}
	col := fieldColumns[field]
	switch Predicate(c.Predicate) {
	case Contains:
		return "LOWER(" + col + ") LIKE ?", "%" + strings.ToLower(c.Value) + "%", true
	case NotContains:
		return "LOWER(" + col + ") NOT LIKE ?", "%" + strings.ToLower(c.Value) + "%", true
	case Equals:
		return "LOWER(" + col + ") = ?", strings.ToLower(c.Value), true
	case NotEquals:
		return "LOWER(" + col + ") != ?", strings.ToLower(c.Value), true
	case LessThan, GreaterThan:
		return compileDateCondition(c, field, col, now)
	}
	return "", nil, false
}

func compileDateCondition(c Condition, field Field, col string, now time.Time) (string, any, bool) {
	if field != FieldReceived {
		return "", nil, false
	}
	n, err := strconv.Atoi(c.Value)
	if err != nil {
		return "", nil, false
	}
	var span time.Duration
	switch c.Unit {
	case UnitDays:
		span = time.Duration(n) * 24 * time.Hour
	case UnitMonths:
		span = time.Duration(n) * monthDays * 24 * time.Hour
	default:
		return "", nil, false
	}
	target := now.UTC().Add(-span).Format(sqlTimeFormat)
	// "received less than N units ago" means newer than the target
	// instant, so the comparison flips.
	if Predicate(c.Predicate) == LessThan {
		return col + " > ?", target, true
	}
	return col + " < ?", target, true
}

// Compile lowers a rule to a single WHERE fragment with bound values in
// positional order. Conditions that fail to compile are dropped; when none
// survive the fragment is empty and the rule matches nothing.
func Compile(r Rule, now time.Time) (string, []any) {
	fragments := make([]string, 0, len(r.Conditions))
	values := make([]any, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		frag, val, ok := CompileCondition(c, now)
		if !ok {
			continue
		}
		fragments = append(fragments, frag)
		values = append(values, val)
	}
	if len(fragments) == 0 {
		return "", nil
	}
	sep := " OR "
	if joinsAll(r.Collection) {
		sep = " AND "
	}
	return strings.Join(fragments, sep), values
}

// joinsAll reports whether conditions combine conjunctively. Anything but
// "all" (or an omitted predicate, which defaults to it) joins with OR.
func joinsAll(collection string) bool {
	return collection == "" || strings.EqualFold(collection, CollectAll)
}
