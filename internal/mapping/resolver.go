// Package mapping resolves mapped source variables out of staged report rows
// and loads mapping definitions from YAML seed files.
package mapping

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
)

// DefaultResultColumn is the row field holding the value of a matched variable
const DefaultResultColumn = "column2"

// calculatedSentinel marks variables derived downstream rather than looked up
const calculatedSentinel = "calculated"

// Resolver finds the value of a named variable in a report's rows
type Resolver interface {
	Resolve(rows []models.Row, variableName string) (any, bool)
}

// FirstMatchResolver scans rows in order and returns the result column of the
// first row in which any cell equals the variable name, ignoring case and
// surrounding whitespace.
type FirstMatchResolver struct {
	resultColumn string
}

// NewFirstMatchResolver creates a resolver reading values from resultColumn
func NewFirstMatchResolver(resultColumn string) *FirstMatchResolver {
	if strings.TrimSpace(resultColumn) == "" {
		resultColumn = DefaultResultColumn
	}
	return &FirstMatchResolver{resultColumn: resultColumn}
}

// Resolve returns the value and true, or nil and false on a miss
func (r *FirstMatchResolver) Resolve(rows []models.Row, variableName string) (any, bool) {
	want := normalize(variableName)
	if want == "" || want == calculatedSentinel {
		return nil, false
	}

	for _, row := range rows {
		for _, cell := range row {
			if normalize(Stringify(cell)) != want {
				continue
			}
			value, ok := row[r.resultColumn]
			if !ok || value == nil {
				return nil, false
			}
			return value, true
		}
	}

	return nil, false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Stringify renders a cell the way it is submitted as a data value
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; never use exponent notation
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
