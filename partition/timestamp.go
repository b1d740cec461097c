package partition

import (
	"fmt"
	"strings"
	"time"

	"github.com/lakestore/tablecore/config"
	"github.com/lakestore/tablecore/core"
)

// DefaultTemplate builds the fallback single-field composition template
// used when no partition.timestamp-pattern is configured: the table's
// first partition column, per config.CoreOptions.PartitionTimestampPattern.
func DefaultTemplate(schema Schema) string {
	if len(schema) == 0 {
		return ""
	}
	return "{" + schema[0].Name + "}"
}

// ExtractTimestamp derives a partition's timestamp from its string-map
// values. template is a format string with {field} placeholders naming
// partition fields to concatenate (e.g. "{year}-{month}-{day}"); callers
// with no configured partition.timestamp-pattern should pass
// DefaultTemplate(schema). The composed string is then parsed against the
// Go time layout pattern (an empty pattern defaults to
// config.DefaultTimestampFormatter, the equivalent of "yyyyMMdd"). Failure
// to compose or parse is reported as *core.UnparseableTimestampError, which
// callers in the expire controller treat as "this partition never
// expires", not as a fatal condition.
func ExtractTimestamp(values map[string]string, template, pattern string) (time.Time, error) {
	if pattern == "" {
		pattern = config.DefaultTimestampFormatter
	}

	composed, err := compose(values, template)
	if err != nil {
		return time.Time{}, &core.UnparseableTimestampError{Pattern: pattern, Cause: err}
	}

	t, err := time.Parse(pattern, composed)
	if err != nil {
		return time.Time{}, &core.UnparseableTimestampError{Value: composed, Pattern: pattern, Cause: err}
	}
	return t, nil
}

func compose(values map[string]string, template string) (string, error) {
	if template == "" {
		return "", fmt.Errorf("no composition template configured")
	}

	var b strings.Builder
	i := 0
	for i < len(template) {
		if template[i] != '{' {
			b.WriteByte(template[i])
			i++
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in template %q", template)
		}
		name := template[i+1 : i+end]
		v, ok := values[name]
		if !ok {
			return "", fmt.Errorf("partition field %q referenced in template %q not present", name, template)
		}
		b.WriteString(v)
		i += end + 1
	}
	return b.String(), nil
}
