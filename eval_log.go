package configcat

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	indent = "  "
	// maxListItems is the number of list items rendered before the
	// rest is summarized.
	maxListItems = 10
	invalidValue = "<invalid value>"
	hashedValue  = "<hashed value>"
)

// evalLogBuilder accumulates the human readable trace of an evaluation.
// All methods are no-ops on a nil builder so that callers don't need to
// check whether tracing is enabled.
type evalLogBuilder struct {
	builder     strings.Builder
	indentLevel int
}

func (b *evalLogBuilder) incIndent() *evalLogBuilder {
	if b != nil {
		b.indentLevel++
	}
	return b
}

func (b *evalLogBuilder) decIndent() *evalLogBuilder {
	if b != nil {
		b.indentLevel--
	}
	return b
}

func (b *evalLogBuilder) newLine() *evalLogBuilder {
	if b == nil {
		return b
	}
	b.builder.WriteByte('\n')
	b.builder.WriteString(strings.Repeat(indent, b.indentLevel))
	return b
}

func (b *evalLogBuilder) newLineString(msg string) *evalLogBuilder {
	if b == nil {
		return b
	}
	b.newLine().builder.WriteString(msg)
	return b
}

func (b *evalLogBuilder) append(val interface{}) *evalLogBuilder {
	if b == nil {
		return b
	}
	if s, ok := val.(string); ok {
		b.builder.WriteString(s)
	} else {
		fmt.Fprint(&b.builder, val)
	}
	return b
}

func (b *evalLogBuilder) appendf(format string, args ...interface{}) *evalLogBuilder {
	if b == nil {
		return b
	}
	fmt.Fprintf(&b.builder, format, args...)
	return b
}

func (b *evalLogBuilder) String() string {
	if b == nil {
		return ""
	}
	return b.builder.String()
}

func (b *evalLogBuilder) appendUserCondition(cond *UserCondition) *evalLogBuilder {
	if b == nil {
		return b
	}
	return b.appendf("User.%s %s %s", cond.ComparisonAttribute, cond.Comparator, formatComparisonValue(cond))
}

func (b *evalLogBuilder) appendSegmentCondition(cond *SegmentCondition) *evalLogBuilder {
	if b == nil {
		return b
	}
	name := "<invalid reference>"
	if cond.segment != nil {
		name = cond.segment.Name
	}
	return b.appendf("User %s '%s'", cond.Comparator, name)
}

func (b *evalLogBuilder) appendPrerequisiteCondition(cond *PrerequisiteFlagCondition) *evalLogBuilder {
	if b == nil {
		return b
	}
	return b.appendf("Flag '%s' %s %s", cond.FlagKey, cond.Comparator, formatAnySettingValue(cond.Value))
}

func (b *evalLogBuilder) appendThen(rule *TargetingRule, settingType SettingType) *evalLogBuilder {
	if b == nil {
		return b
	}
	if rule.ServedValue != nil {
		return b.appendf("THEN %s", formatSettingValue(rule.ServedValue.Value, settingType))
	}
	if len(rule.PercentageOptions) > 0 {
		return b.append("THEN % options")
	}
	return b.append("THEN " + invalidValue)
}

// formatComparisonValue renders the comparison value of cond the way
// it's shown in the evaluation trace. Hashed values are never shown.
func formatComparisonValue(cond *UserCondition) string {
	op := cond.Comparator
	switch {
	case op.IsList():
		if cond.StringArrayValue == nil {
			return invalidValue
		}
		if op.IsSensitive() {
			n := len(cond.StringArrayValue)
			return fmt.Sprintf("[<%d hashed %s>]", n, plural(n, "value"))
		}
		return formatStringList(cond.StringArrayValue)
	case op.IsDateTime():
		if cond.DoubleValue == nil {
			return invalidValue
		}
		return formatDateTime(*cond.DoubleValue)
	case op.IsNumeric():
		if cond.DoubleValue == nil {
			return invalidValue
		}
		return "'" + formatFloat(*cond.DoubleValue) + "'"
	default:
		if cond.StringValue == nil {
			return invalidValue
		}
		if op.IsSensitive() {
			return "'" + hashedValue + "'"
		}
		return "'" + *cond.StringValue + "'"
	}
}

func formatStringList(items []string) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, item := range items {
		if i == maxListItems {
			rest := len(items) - maxListItems
			fmt.Fprintf(&sb, ", ... <%d more %s>", rest, plural(rest, "value"))
			break
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("'" + item + "'")
	}
	sb.WriteByte(']')
	return sb.String()
}

// formatDateTime renders a Unix timestamp in seconds together with
// its UTC calendar form.
func formatDateTime(seconds float64) string {
	t := time.UnixMilli(int64(math.Round(seconds * 1000))).UTC()
	return fmt.Sprintf("'%s' (%s UTC)", formatFloat(seconds), t.Format("2006-01-02T15:04:05.000Z"))
}

func formatSettingValue(v *SettingValue, t SettingType) string {
	val, err := v.valueFor(t)
	if err != nil {
		return invalidValue
	}
	return formatValue(val)
}

func formatAnySettingValue(v *SettingValue) string {
	t := v.Type()
	if t == UnknownSetting {
		return invalidValue
	}
	return formatSettingValue(v, t)
}

func formatValue(val interface{}) string {
	if f, ok := val.(float64); ok {
		return "'" + formatFloat(f) + "'"
	}
	return fmt.Sprintf("'%v'", val)
}

func formatUser(user User) string {
	if s, ok := user.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%#v", user)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
