package manifest

import (
	"encoding/json"
	"fmt"
)

// Argument is a plain argument or a rule-guarded group of arguments.
type Argument struct {
	Values []string
	Rules  []Rule
}

// UnmarshalJSON accepts "value", {"rules": [...], "value": "v"} and
// {"rules": [...], "value": ["a", "b"]}.
func (a *Argument) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*a = Argument{Values: []string{plain}}
		return nil
	}

	var guarded struct {
		Rules []Rule          `json:"rules"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &guarded); err != nil {
		return fmt.Errorf("argument: %w", err)
	}

	var values []string
	if err := json.Unmarshal(guarded.Value, &plain); err == nil {
		values = []string{plain}
	} else if err := json.Unmarshal(guarded.Value, &values); err != nil {
		return fmt.Errorf("argument value: %w", err)
	}
	*a = Argument{Values: values, Rules: guarded.Rules}
	return nil
}

// MarshalJSON writes the compact form back out.
func (a Argument) MarshalJSON() ([]byte, error) {
	if len(a.Rules) == 0 && len(a.Values) == 1 {
		return json.Marshal(a.Values[0])
	}
	return json.Marshal(struct {
		Rules []Rule   `json:"rules,omitempty"`
		Value []string `json:"value"`
	}{a.Rules, a.Values})
}

// Flatten returns the argument values whose rules are allowed on f, in order.
func Flatten(args []Argument, f Facts) []string {
	var out []string
	for _, a := range args {
		if Allowed(a.Rules, f) {
			out = append(out, a.Values...)
		}
	}
	return out
}
