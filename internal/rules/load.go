package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
)

// File is a JSON rule file on disk. It satisfies the rule source interface
// the execution engine consumes.
type File struct {
	Path    string
	Lenient bool
}

func (f File) Load() ([]Rule, error) {
	return LoadFile(f.Path, f.Lenient)
}

// LoadFile reads and decodes a rule file. A missing or malformed file is
// always an error. In strict mode (lenient=false) validation findings are
// collected across every rule and returned as a single error so the
// author sees them all at once.
func LoadFile(path string, lenient bool) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var ruleSet []Rule
	if err := json.Unmarshal(raw, &ruleSet); err != nil {
		return nil, fmt.Errorf("decode rules file %s: %w", path, err)
	}
	if lenient {
		return ruleSet, nil
	}
	var findings *multierror.Error
	for _, r := range ruleSet {
		for _, verr := range r.Validate() {
			findings = multierror.Append(findings, fmt.Errorf("rule %q: %w", r.DisplayName(), verr))
		}
	}
	if err := findings.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("validate rules file %s: %w", path, err)
	}
	return ruleSet, nil
}
