package notify

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// Filter gates notifications on a jq expression evaluated against the
// event's JSON form. Events whose expression result is falsy are not
// notified. A nil *Filter matches everything.
type Filter struct {
	code *gojq.Code
}

// NewFilter parses and compiles a jq expression.
func NewFilter(expr string) (*Filter, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}
	return &Filter{code: code}, nil
}

// Match evaluates the filter against v (any JSON-marshalable value).
// The first result must be truthy; evaluation errors count as a miss.
func (f *Filter) Match(v any) bool {
	if f == nil {
		return true
	}

	// Round-trip through JSON so gojq sees plain maps and slices
	// rather than Go structs.
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}

	iter := f.code.Run(doc)
	result, ok := iter.Next()
	if !ok {
		return false
	}
	if _, isErr := result.(error); isErr {
		return false
	}
	return isTruthy(result)
}

// isTruthy follows jq semantics: false and null are falsy, everything
// else is truthy.
func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}
