// Package assertion compares responses of the DataHub API against expected
// values. Every helper returns a domain.Record; a mismatch is reported as a
// failed record, never as an error.
package assertion

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
)

// Relation selects how Numbers compares its operands
type Relation int

const (
	// LessThan holds when low < high
	LessThan Relation = iota
	// Equal holds when low == high
	Equal
)

func (r Relation) String() string {
	if r == Equal {
		return "equal to"
	}
	return "greater than"
}

// Status compares a response status code to the expected one.
// An expected code of zero means http.StatusOK.
func Status(name string, actual, expected int) domain.Record {
	if expected == 0 {
		expected = http.StatusOK
	}
	if actual == expected {
		return domain.Pass(name)
	}
	return domain.Fail(name, "Unexpected status code: Expected %d, but Received %d", expected, actual)
}

// Body compares body[key] to expected using deep equality on JSON values.
// A missing key compares as nil.
func Body(name string, body map[string]any, key string, expected any) domain.Record {
	actual := body[key]
	if jsonEqual(actual, expected) {
		return domain.Pass(name)
	}
	return domain.Fail(name, "Unexpected key/value in body: Expected {%s:%s}, but Received {%s:%s}",
		key, render(expected), key, render(actual))
}

// Message compares an error string returned by the API to the expected one
func Message(name, actual, expected string) domain.Record {
	if actual == expected {
		return domain.Pass(name)
	}
	return domain.Fail(name, "Unexpected error message: Expected %q, but Received %q", expected, actual)
}

// Numbers checks low < high, or low == high when rel is Equal
func Numbers(name string, low, high int, rel Relation) domain.Record {
	ok := low < high
	if rel == Equal {
		ok = low == high
	}
	if ok {
		return domain.Pass(name)
	}
	return domain.Fail(name, "Expected %s %d, but Received %d", rel, low, high)
}

// Failed records a step that could not be evaluated at all,
// typically because the request or its decoding failed.
func Failed(name string, err error) domain.Record {
	return domain.Fail(name, "Check could not run: %v", err)
}

// jsonEqual normalizes both values through encoding/json so that, for
// example, int 2 and float64 2 or map[string]int and map[string]any compare equal.
func jsonEqual(a, b any) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return reflect.DeepEqual(na, nb)
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func render(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
