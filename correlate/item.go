package correlate

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-crm-sync/core"
)

// Item is one side of a correlation comparison: a generic attribute map, a
// local projection or a remote payload. The correlation layer never sees
// typed domain objects.
type Item map[string]any

func FromRecord(record core.Record) Item {
	if record == nil {
		return Item{}
	}
	out := make(Item, len(record))
	for key, value := range record {
		out[key] = value
	}
	return out
}

// Attr returns the named attribute. A missing key is malformed input and
// fails fast instead of degrading into a false non-match.
func (i Item) Attr(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", core.NewCorrelationError("correlate: attribute name is required", nil)
	}
	value, ok := i[name]
	if !ok {
		return "", core.NewCorrelationError(
			fmt.Sprintf("correlate: attribute %q is missing", name),
			map[string]any{"attribute": name},
		)
	}
	if value == nil {
		return "", nil
	}
	return strings.TrimSpace(fmt.Sprint(value)), nil
}

// AssertAttributes verifies both items carry every named attribute.
func AssertAttributes(item Item, another Item, names ...string) error {
	for _, name := range names {
		if _, err := item.Attr(name); err != nil {
			return err
		}
		if _, err := another.Attr(name); err != nil {
			return err
		}
	}
	return nil
}

// Normalize folds case and collapses interior whitespace so cosmetic remote
// edits do not defeat correlation.
func Normalize(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

func attrsEqual(item Item, another Item, name string) (bool, error) {
	left, err := item.Attr(name)
	if err != nil {
		return false, err
	}
	right, err := another.Attr(name)
	if err != nil {
		return false, err
	}
	return Normalize(left) == Normalize(right), nil
}
