package configcattest

import (
	"fmt"
	"strconv"
	"strings"

	configcat "github.com/configcat/go-sdk/v9"
)

// configSalt is the salt written into every generated config.
const configSalt = "configcattest"

// Flag represents a configcat flag.
type Flag struct {
	// Default holds the default value for the flag.
	// It should hold one of the types string, float64, int or bool.
	Default interface{}

	// Rules holds a set of rules to check against in order.
	// If any rule is satisfied, its associated value is used,
	// otherwise the percentage options or the default value are used.
	Rules []Rule

	// PercentageAttribute names the user attribute used for
	// percentage options. If it's empty, the Identifier is used.
	PercentageAttribute string

	// Percentages holds percentage options that are consulted
	// when no rule matches. If present, the percentages must add up
	// to 100.
	Percentages []PercentageOption
}

// Rule is a single-condition targeting rule.
type Rule struct {
	// ComparisonAttribute holds the user attribute to
	// check when evaluating the rule.
	ComparisonAttribute string

	// Comparator holds how the compare the above user
	// attribute to the comparison value.
	Comparator Operator

	// ComparisonValue holds the value to compare the
	// user attribute against. For list operators it holds
	// comma-separated items. For numeric and date-time operators
	// it holds a number. Values for the hashed operators are
	// given in clear text and hashed when the config is generated.
	ComparisonValue string

	// Value holds the value for the flag if the rule is satisfied.
	// It should hold one of the types string, float64, int or bool
	// and be the same type as the default value of the
	// flag that it's associated with.
	Value interface{}
}

// PercentageOption serves Value to Percentage percent of users.
type PercentageOption struct {
	Percentage int64
	Value      interface{}
}

func (f *Flag) setting(key string) (*configcat.Setting, error) {
	ft := configcat.SettingTypeOf(f.Default)
	if ft == configcat.UnknownSetting {
		return nil, fmt.Errorf("invalid type %T for default value %#v", f.Default, f.Default)
	}
	value, _ := configcat.NewSettingValue(f.Default)
	s := &configcat.Setting{
		VariationID:                "v_" + key,
		Type:                       ft,
		Value:                      value,
		PercentageOptionsAttribute: f.PercentageAttribute,
		TargetingRules:             make([]*configcat.TargetingRule, 0, len(f.Rules)),
	}
	for i, rule := range f.Rules {
		if !rule.Comparator.valid() {
			return nil, fmt.Errorf("invalid comparator value %d", rule.Comparator)
		}
		if rule.ComparisonAttribute == "" {
			return nil, fmt.Errorf("empty comparison attribute")
		}
		if rule.ComparisonValue == "" {
			return nil, fmt.Errorf("empty comparison value")
		}
		if configcat.SettingTypeOf(rule.Value) != ft {
			return nil, fmt.Errorf("rule value for rule (%q %v %q) has inconsistent type %T (value %#v) with flag default value %#v", rule.ComparisonAttribute, rule.Comparator, rule.ComparisonValue, rule.Value, rule.Value, f.Default)
		}
		cond, err := rule.condition(key)
		if err != nil {
			return nil, err
		}
		ruleValue, _ := configcat.NewSettingValue(rule.Value)
		s.TargetingRules = append(s.TargetingRules, &configcat.TargetingRule{
			Conditions: []*configcat.Condition{{UserCondition: cond}},
			ServedValue: &configcat.ServedValue{
				Value:       ruleValue,
				VariationID: fmt.Sprintf("v%d_%s", i, key),
			},
		})
	}
	if len(f.Percentages) == 0 {
		return s, nil
	}
	total := int64(0)
	for i, option := range f.Percentages {
		if configcat.SettingTypeOf(option.Value) != ft {
			return nil, fmt.Errorf("percentage option %d has inconsistent type %T (value %#v) with flag default value %#v", i, option.Value, option.Value, f.Default)
		}
		if option.Percentage < 0 {
			return nil, fmt.Errorf("percentage option %d has negative percentage %d", i, option.Percentage)
		}
		total += option.Percentage
		optionValue, _ := configcat.NewSettingValue(option.Value)
		s.PercentageOptions = append(s.PercentageOptions, &configcat.PercentageOption{
			Percentage:  option.Percentage,
			Value:       optionValue,
			VariationID: fmt.Sprintf("p%d_%s", i, key),
		})
	}
	if total != 100 {
		return nil, fmt.Errorf("percentage options add up to %d, not 100", total)
	}
	return s, nil
}

func (r *Rule) condition(key string) (*configcat.UserCondition, error) {
	op := configcat.Comparator(r.Comparator)
	cond := &configcat.UserCondition{
		ComparisonAttribute: r.ComparisonAttribute,
		Comparator:          op,
	}
	switch {
	case op.IsNumeric() || op.IsDateTime():
		f, err := strconv.ParseFloat(strings.TrimSpace(r.ComparisonValue), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric comparison value %q", r.ComparisonValue)
		}
		cond.DoubleValue = &f
	case op.IsList():
		items := strings.Split(r.ComparisonValue, ",")
		for i, item := range items {
			items[i] = hashItem(op, key, strings.TrimSpace(item))
		}
		cond.StringArrayValue = items
	default:
		v := hashItem(op, key, r.ComparisonValue)
		cond.StringValue = &v
	}
	return cond, nil
}

// hashItem returns the form of item that the client compares
// against for the given operator.
func hashItem(op configcat.Comparator, key, item string) string {
	if !op.IsSensitive() {
		return item
	}
	h := configcat.DefaultComparisonHasher().Hash([]byte(item), configSalt, key)
	switch op {
	case configcat.OpStartsWithAnyOfHashed, configcat.OpNotStartsWithAnyOfHashed,
		configcat.OpEndsWithAnyOfHashed, configcat.OpNotEndsWithAnyOfHashed:
		return fmt.Sprintf("%d_%s", len(item), h)
	}
	return h
}
