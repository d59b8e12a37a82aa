package configcat

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/blang/semver/v4"
)

// evalUserCondition evaluates a condition on a user attribute.
// contextSalt is the setting key, or the segment name when the condition
// belongs to a segment.
func (e *evaluator) evalUserCondition(ctx *evalContext, cond *UserCondition, contextSalt string) (bool, error) {
	b := ctx.state.log
	b.appendUserCondition(cond)
	if ctx.user == nil {
		e.logMissingUser(ctx)
		return false, skipf("the User Object is missing")
	}
	attr := cond.ComparisonAttribute
	raw := ctx.user.GetAttribute(attr)
	if isMissingAttribute(raw) {
		e.logMissingAttribute(ctx, attr)
		return false, skipf("the User.%s attribute is missing", attr)
	}
	op := cond.Comparator
	switch op {
	case OpEq, OpNotEq:
		if cond.StringValue == nil {
			return false, &ComparisonValueError{Comparator: op}
		}
		return (attributeText(raw) == *cond.StringValue) == (op == OpEq), nil
	case OpEqHashed, OpNotEqHashed:
		if cond.StringValue == nil {
			return false, &ComparisonValueError{Comparator: op}
		}
		hashed := e.hasher.Hash([]byte(attributeText(raw)), ctx.setting.salt, contextSalt)
		return (hashed == *cond.StringValue) == (op == OpEqHashed), nil
	case OpOneOf, OpNotOneOf:
		if cond.StringArrayValue == nil {
			return false, &ComparisonValueError{Comparator: op}
		}
		return containsString(cond.StringArrayValue, attributeText(raw)) == (op == OpOneOf), nil
	case OpOneOfHashed, OpNotOneOfHashed:
		if cond.StringArrayValue == nil {
			return false, &ComparisonValueError{Comparator: op}
		}
		hashed := e.hasher.Hash([]byte(attributeText(raw)), ctx.setting.salt, contextSalt)
		return containsString(cond.StringArrayValue, hashed) == (op == OpOneOfHashed), nil
	case OpContains, OpNotContains:
		if cond.StringArrayValue == nil {
			return false, &ComparisonValueError{Comparator: op}
		}
		text := attributeText(raw)
		for _, item := range cond.StringArrayValue {
			if strings.Contains(text, item) {
				return op == OpContains, nil
			}
		}
		return op == OpNotContains, nil
	case OpStartsWithAnyOf, OpNotStartsWithAnyOf, OpEndsWithAnyOf, OpNotEndsWithAnyOf:
		if cond.StringArrayValue == nil {
			return false, &ComparisonValueError{Comparator: op}
		}
		startsWith := op == OpStartsWithAnyOf || op == OpNotStartsWithAnyOf
		needsTrue := op == OpStartsWithAnyOf || op == OpEndsWithAnyOf
		text := attributeText(raw)
		for _, item := range cond.StringArrayValue {
			if (startsWith && strings.HasPrefix(text, item)) || (!startsWith && strings.HasSuffix(text, item)) {
				return needsTrue, nil
			}
		}
		return !needsTrue, nil
	case OpStartsWithAnyOfHashed, OpNotStartsWithAnyOfHashed, OpEndsWithAnyOfHashed, OpNotEndsWithAnyOfHashed:
		if cond.StringArrayValue == nil {
			return false, &ComparisonValueError{Comparator: op}
		}
		startsWith := op == OpStartsWithAnyOfHashed || op == OpNotStartsWithAnyOfHashed
		needsTrue := op == OpStartsWithAnyOfHashed || op == OpEndsWithAnyOfHashed
		return e.matchHashedAffix(ctx, cond, []byte(attributeText(raw)), contextSalt, startsWith, needsTrue)
	case OpArrayContainsAnyOf, OpArrayNotContainsAnyOf, OpArrayContainsAnyOfHashed, OpArrayNotContainsAnyOfHashed:
		if cond.StringArrayValue == nil {
			return false, &ComparisonValueError{Comparator: op}
		}
		list, err := attributeStringList(raw)
		if err != nil {
			return false, e.invalidAttribute(ctx, attr, raw, "an array of strings", err)
		}
		needsTrue := op == OpArrayContainsAnyOf || op == OpArrayContainsAnyOfHashed
		for _, item := range list {
			if op.IsSensitive() {
				item = e.hasher.Hash([]byte(item), ctx.setting.salt, contextSalt)
			}
			if containsString(cond.StringArrayValue, item) {
				return needsTrue, nil
			}
		}
		return !needsTrue, nil
	case OpOneOfSemver, OpNotOneOfSemver:
		if cond.StringArrayValue == nil {
			return false, &ComparisonValueError{Comparator: op}
		}
		version, err := attributeSemver(raw)
		if err != nil {
			return false, e.invalidAttribute(ctx, attr, raw, "a semantic version", err)
		}
		matched := false
		for _, item := range cond.StringArrayValue {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			v, err := semver.Parse(item)
			if err != nil {
				// An invalid comparison item makes the whole condition false.
				return false, nil
			}
			matched = matched || v.EQ(version)
		}
		return matched == (op == OpOneOfSemver), nil
	case OpLessSemver, OpLessEqSemver, OpGreaterSemver, OpGreaterEqSemver:
		if cond.StringValue == nil {
			return false, &ComparisonValueError{Comparator: op}
		}
		version, err := attributeSemver(raw)
		if err != nil {
			return false, e.invalidAttribute(ctx, attr, raw, "a semantic version", err)
		}
		cmpVersion, err := semver.Parse(strings.TrimSpace(*cond.StringValue))
		if err != nil {
			return false, nil
		}
		switch op {
		case OpLessSemver:
			return version.LT(cmpVersion), nil
		case OpLessEqSemver:
			return version.LTE(cmpVersion), nil
		case OpGreaterSemver:
			return version.GT(cmpVersion), nil
		default:
			return version.GTE(cmpVersion), nil
		}
	case OpEqNum, OpNotEqNum, OpLessNum, OpLessEqNum, OpGreaterNum, OpGreaterEqNum:
		if cond.DoubleValue == nil {
			return false, &ComparisonValueError{Comparator: op}
		}
		f, err := attributeFloat(raw)
		if err != nil {
			return false, e.invalidAttribute(ctx, attr, raw, "a decimal number", err)
		}
		cmp := *cond.DoubleValue
		switch op {
		case OpEqNum:
			return f == cmp, nil
		case OpNotEqNum:
			return f != cmp, nil
		case OpLessNum:
			return f < cmp, nil
		case OpLessEqNum:
			return f <= cmp, nil
		case OpGreaterNum:
			return f > cmp, nil
		default:
			return f >= cmp, nil
		}
	case OpBeforeDateTime, OpAfterDateTime:
		if cond.DoubleValue == nil {
			return false, &ComparisonValueError{Comparator: op}
		}
		seconds, err := attributeDateTime(raw)
		if err != nil {
			return false, e.invalidAttribute(ctx, attr, raw, "a datetime or a Unix timestamp", err)
		}
		if op == OpBeforeDateTime {
			return seconds < *cond.DoubleValue, nil
		}
		return seconds > *cond.DoubleValue, nil
	}
	return false, fmt.Errorf("comparison operator %d is invalid", op)
}

// matchHashedAffix implements the hashed STARTS WITH and ENDS WITH
// comparators. Each comparison item has the form "<length>_<digest>"
// where length is the byte length of the hashed prefix or suffix.
func (e *evaluator) matchHashedAffix(ctx *evalContext, cond *UserCondition, text []byte, contextSalt string, startsWith, needsTrue bool) (bool, error) {
	for _, item := range cond.StringArrayValue {
		lengthStr, digest, ok := strings.Cut(item, "_")
		if !ok {
			return false, &ComparisonValueError{Comparator: cond.Comparator}
		}
		length, err := strconv.Atoi(strings.TrimSpace(lengthStr))
		if err != nil || length < 0 {
			return false, &ComparisonValueError{Comparator: cond.Comparator}
		}
		if len(text) < length {
			continue
		}
		var chunk []byte
		if startsWith {
			chunk = text[:length]
		} else {
			chunk = text[len(text)-length:]
		}
		if e.hasher.Hash(chunk, ctx.setting.salt, contextSalt) == digest {
			return needsTrue, nil
		}
	}
	return !needsTrue, nil
}

func (e *evaluator) evalSegmentCondition(ctx *evalContext, cond *SegmentCondition) (bool, error) {
	b := ctx.state.log
	b.appendSegmentCondition(cond)
	segment := cond.segment
	if segment == nil {
		return false, fmt.Errorf("segment reference %d of setting '%s' is invalid", cond.Index, ctx.key)
	}
	if cond.Comparator != OpSegmentIsIn && cond.Comparator != OpSegmentIsNotIn {
		return false, fmt.Errorf("segment comparison operator %d is invalid", cond.Comparator)
	}
	if ctx.user == nil {
		e.logMissingUser(ctx)
		return false, skipf("the User Object is missing")
	}
	b.newLineString("(").incIndent()
	b.newLineString(fmt.Sprintf("Evaluating segment '%s':", segment.Name))

	inSegment, err := true, error(nil)
	for i, uc := range segment.Conditions {
		if uc == nil {
			continue
		}
		if i == 0 {
			b.newLineString("- IF ")
		} else {
			b.incIndent().newLineString("AND ")
		}
		var matched bool
		matched, err = e.evalUserCondition(ctx, uc, segment.Name)
		switch {
		case err != nil:
			b.append(" => cannot evaluate")
		case matched:
			b.append(" => true")
		default:
			b.append(" => false")
		}
		if i > 0 {
			b.decIndent()
		}
		if err != nil || !matched {
			inSegment = false
			break
		}
	}
	if err != nil {
		if !isSkip(err) {
			return false, err
		}
		b.newLineString("Segment evaluation result: cannot evaluate, " + err.Error() + ".")
		b.newLineString(fmt.Sprintf("Condition (User %s '%s') failed to evaluate.", cond.Comparator, segment.Name))
		b.decIndent().newLineString(")")
		return false, err
	}
	result := inSegment == (cond.Comparator == OpSegmentIsIn)
	segmentResult := OpSegmentIsIn
	if !inSegment {
		segmentResult = OpSegmentIsNotIn
	}
	b.newLineString(fmt.Sprintf("Segment evaluation result: User %s.", segmentResult))
	b.newLineString(fmt.Sprintf("Condition (User %s '%s') evaluates to %v.", cond.Comparator, segment.Name, result))
	b.decIndent().newLineString(")")
	return result, nil
}

func (e *evaluator) evalPrerequisiteCondition(ctx *evalContext, cond *PrerequisiteFlagCondition) (bool, error) {
	b := ctx.state.log
	b.appendPrerequisiteCondition(cond)
	key := cond.FlagKey
	target, ok := ctx.config.Settings[key]
	if !ok || target == nil {
		return false, &ErrPrerequisiteNotFound{Key: key}
	}
	if cond.Comparator != OpPrerequisiteEq && cond.Comparator != OpPrerequisiteNotEq {
		return false, fmt.Errorf("prerequisite flag comparison operator %d is invalid", cond.Comparator)
	}
	for _, visited := range ctx.visitedKeys {
		if visited == key {
			chain := make([]string, len(ctx.visitedKeys), len(ctx.visitedKeys)+1)
			copy(chain, ctx.visitedKeys)
			return false, &ErrCircularDependency{Chain: append(chain, key)}
		}
	}
	cmpType := cond.Value.Type()
	if cmpType == UnknownSetting {
		return false, fmt.Errorf("comparison value of prerequisite flag '%s' is missing or invalid: %w", key, errMissingValue)
	}
	if cmpType != target.Type {
		e.logger.Warnf(3005, "type mismatch between comparison value %s and prerequisite flag '%s' of type %v", formatAnySettingValue(cond.Value), key, target.Type)
		return false, skipf("type mismatch between comparison value %s and prerequisite flag '%s'", formatAnySettingValue(cond.Value), key)
	}
	expected, _ := cond.Value.valueFor(cmpType)

	b.newLineString("(").incIndent()
	b.newLineString(fmt.Sprintf("Evaluating prerequisite flag '%s':", key))
	res, err := e.evalSetting(ctx.forPrerequisite(key, target))
	if err != nil {
		return false, err
	}
	result := (res.value == expected) == (cond.Comparator == OpPrerequisiteEq)
	b.newLineString(fmt.Sprintf("Prerequisite flag evaluation result: %s.", formatValue(res.value)))
	b.newLineString(fmt.Sprintf("Condition (Flag '%s' %s %s) evaluates to %v.", key, cond.Comparator, formatValue(expected), result))
	b.decIndent().newLineString(")")
	return result, nil
}

func (e *evaluator) invalidAttribute(ctx *evalContext, attr string, value interface{}, expected string, err error) error {
	e.logger.Warnf(3004, "cannot evaluate condition for setting '%s' (%v is not %s); "+
		"please check the User.%s attribute and make sure that its value corresponds to the comparison operator",
		ctx.rootKey(), formatValue(attributeText(value)), expected, attr)
	return skipf("the User.%s attribute is invalid (%v)", attr, err)
}

func isMissingAttribute(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func containsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}

// attributeText returns the canonical text form of a user attribute.
func attributeText(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr:
		return fmt.Sprint(v)
	case time.Time:
		return formatFloat(unixSeconds(v))
	case []string:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func attributeFloat(v interface{}) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case uintptr:
		return float64(v), nil
	case string:
		return parseFloat(v)
	case []byte:
		return parseFloat(string(v))
	}
	return 0, fmt.Errorf("cannot convert %T to a number", v)
}

// attributeDateTime returns a datetime attribute as seconds since the Unix epoch.
func attributeDateTime(v interface{}) (float64, error) {
	if t, ok := v.(time.Time); ok {
		return unixSeconds(t), nil
	}
	f, err := attributeFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("NaN is not a valid timestamp")
	}
	return f, nil
}

func attributeSemver(v interface{}) (semver.Version, error) {
	var s string
	switch v := v.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return semver.Version{}, fmt.Errorf("cannot use %T as a semantic version", v)
	}
	return semver.Parse(strings.TrimSpace(s))
}

// attributeStringList accepts a []string, a []interface{} holding only
// strings, or a JSON encoded array of strings.
func attributeStringList(v interface{}) ([]string, error) {
	switch v := v.(type) {
	case []string:
		return v, nil
	case []interface{}:
		list := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list item %d has type %T, not string", i, item)
			}
			list[i] = s
		}
		return list, nil
	case string:
		var list []string
		if err := json.Unmarshal([]byte(v), &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	return nil, fmt.Errorf("cannot use %T as a list of strings", v)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

// formatFloat renders f the way numbers are compared as text: integral
// values have no fraction and very small or large values use an exponent.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if a := math.Abs(f); a != 0 && (a < 1e-7 || a >= 1e21) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
