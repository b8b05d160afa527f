package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field names a snapshot column a condition can test.
type Field string

const (
	FieldFrom     Field = "From"
	FieldSubject  Field = "Subject"
	FieldMessage  Field = "Message"
	FieldReceived Field = "Date Received"
)

// Predicate names a comparison a condition can apply. The four text
// predicates work on any field; the two date predicates only on
// FieldReceived.
type Predicate string

const (
	Contains    Predicate = "contains"
	NotContains Predicate = "does not contain"
	Equals      Predicate = "equals"
	NotEquals   Predicate = "does not equal"
	LessThan    Predicate = "is less than"
	GreaterThan Predicate = "is greater than"
)

// Units accepted by date predicates. A month counts as exactly 30 days.
const (
	UnitDays   = "days"
	UnitMonths = "months"
)

// Collection predicates decide how a rule joins its conditions.
const (
	CollectAll = "all"
	CollectAny = "any"
)

// Actions recognized by the operation bundler.
const (
	ActionMarkAsRead = "Mark as Read"
	ActionMove       = "Move message"
)

// Condition is one field test inside a rule. In the rule file these live
// under the "rules" key.
type Condition struct {
	Field     string `json:"field_name"`
	Predicate string `json:"predicate"`
	Value     string `json:"value"`
	Unit      string `json:"unit,omitempty"`
}

// OperationSpec is one requested action in a rule file.
type OperationSpec struct {
	Action      string `json:"action"`
	Destination string `json:"destination,omitempty"`
}

// Rule pairs a set of conditions with the operations to run on matching
// emails. A missing collection predicate means "all".
type Rule struct {
	Name       string          `json:"rule_name"`
	Collection string          `json:"rule_collection_predicate"`
	Conditions []Condition     `json:"rules"`
	Operations []OperationSpec `json:"operations"`
}

// DisplayName is the rule's name for logs and reports, with a placeholder
// for unnamed rules.
func (r Rule) DisplayName() string {
	if strings.TrimSpace(r.Name) == "" {
		return "Unnamed Rule"
	}
	return r.Name
}

// NormalizeField maps a rule file field name onto its enum form, accepting
// any casing ("from", "FROM", "From").
func NormalizeField(name string) (Field, bool) {
	f := Field(cases.Title(language.English).String(strings.TrimSpace(name)))
	_, ok := fieldColumns[f]
	return f, ok
}

// Validate reports every problem that would make the engine silently drop
// or reinterpret part of the rule. Strict loading rejects rules with
// findings; lenient loading runs them anyway.
func (r Rule) Validate() []error {
	var errs []error
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, errors.New("missing rule_name"))
	}
	if !joinsAll(r.Collection) && !strings.EqualFold(r.Collection, CollectAny) {
		errs = append(errs, fmt.Errorf("unknown rule_collection_predicate %q", r.Collection))
	}
	if len(r.Conditions) == 0 {
		errs = append(errs, errors.New("no conditions"))
	}
	for i, c := range r.Conditions {
		for _, err := range c.validate() {
			errs = append(errs, fmt.Errorf("condition %d: %w", i+1, err))
		}
	}
	if len(r.Operations) == 0 {
		errs = append(errs, errors.New("no operations"))
	}
	for i, op := range r.Operations {
		for _, err := range op.validate() {
			errs = append(errs, fmt.Errorf("operation %d: %w", i+1, err))
		}
	}
	return errs
}

func (c Condition) validate() []error {
	var errs []error
	field, known := NormalizeField(c.Field)
	if !known {
		errs = append(errs, fmt.Errorf("unknown field_name %q", c.Field))
	}
	if c.Value == "" {
		errs = append(errs, errors.New("missing value"))
	}
	switch Predicate(c.Predicate) {
	case Contains, NotContains, Equals, NotEquals:
	case LessThan, GreaterThan:
		if known && field != FieldReceived {
			errs = append(errs, fmt.Errorf("predicate %q only applies to %q", c.Predicate, FieldReceived))
		}
		if c.Value != "" {
			if _, err := strconv.Atoi(c.Value); err != nil {
				errs = append(errs, fmt.Errorf("value %q is not a whole number", c.Value))
			}
		}
		if c.Unit != UnitDays && c.Unit != UnitMonths {
			errs = append(errs, fmt.Errorf("unit must be %q or %q, got %q", UnitDays, UnitMonths, c.Unit))
		}
	case "":
		errs = append(errs, errors.New("missing predicate"))
	default:
		errs = append(errs, fmt.Errorf("unknown predicate %q", c.Predicate))
	}
	return errs
}

func (o OperationSpec) validate() []error {
	switch o.Action {
	case ActionMarkAsRead:
		return nil
	case ActionMove:
		if strings.TrimSpace(o.Destination) == "" {
			return []error{errors.New("move message requires a destination")}
		}
		return nil
	case "":
		return []error{errors.New("missing action")}
	default:
		return []error{fmt.Errorf("unknown action %q", o.Action)}
	}
}
