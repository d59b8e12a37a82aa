package configcat

import (
	"fmt"
	"math"
)

// ConfigJson describes a ConfigCat config JSON.
type ConfigJson struct {
	// Settings is the map of the available feature flags and settings.
	Settings map[string]*Setting `json:"f"`
	// Segments is the list of available segments.
	Segments []*Segment `json:"s"`
	// Preferences contains additional metadata.
	Preferences *Preferences `json:"p"`
}

// Setting holds all the metadata of a ConfigCat feature flag or setting.
type Setting struct {
	// PercentageOptionsAttribute is the User Object attribute which serves as the basis of percentage options evaluation.
	PercentageOptionsAttribute string `json:"a"`
	// VariationID is the variation ID.
	VariationID string `json:"i"`
	// Value holds the setting's default value used when no targeting rules are matching during an evaluation process.
	Value *SettingValue `json:"v"`
	// Type describes the setting's type. It can be BoolSetting, StringSetting, IntSetting, FloatSetting
	Type SettingType `json:"t"`
	// TargetingRules is the list of targeting rules (where there is a logical OR relation between the items).
	TargetingRules []*TargetingRule `json:"r"`
	// PercentageOptions is the list of percentage options.
	PercentageOptions []*PercentageOption `json:"p"`

	// salt is copied from Preferences.Salt by parseConfig.
	salt string
}

// TargetingRule describes a targeting rule used in the flag evaluation process.
type TargetingRule struct {
	// ServedValue is the value associated with the targeting rule or nil if the targeting rule has percentage options THEN part.
	ServedValue *ServedValue `json:"s"`
	// Conditions is the list of conditions (where there is a logical AND relation between the items).
	Conditions []*Condition `json:"c"`
	// PercentageOptions is the list of percentage options associated with the targeting rule or nil if the targeting rule has a served value THEN part.
	PercentageOptions []*PercentageOption `json:"p"`
}

// ServedValue describes the literal outcome of a targeting rule.
type ServedValue struct {
	// Value is the value associated with the targeting rule or nil if the targeting rule has percentage options THEN part.
	Value *SettingValue `json:"v"`
	// VariationID of the targeting rule.
	VariationID string `json:"i"`
}

// PercentageOption describes a percentage option used in targeting rules.
type PercentageOption struct {
	// Value is the served value of the percentage option.
	Value *SettingValue `json:"v"`
	// Percentage is a number between 0 and 100 that represents a randomly allocated fraction of the users.
	Percentage int64 `json:"p"`
	// VariationID of the percentage option.
	VariationID string `json:"i"`
}

// Segment describes a ConfigCat segment.
type Segment struct {
	// Name is the first 4 characters of the Segment's name
	Name string `json:"n"`
	// Conditions is the list of segment rule conditions (has a logical AND relation between the items).
	Conditions []*UserCondition `json:"r"`
}

// Condition is a discriminated union of UserCondition, SegmentCondition, and PrerequisiteFlagCondition.
type Condition struct {
	// UserCondition describes a condition that works with User Object attributes.
	UserCondition *UserCondition `json:"u"`
	// SegmentCondition describes a condition that works with a segment.
	SegmentCondition *SegmentCondition `json:"s"`
	// PrerequisiteFlagCondition describes a condition that works with a prerequisite flag.
	PrerequisiteFlagCondition *PrerequisiteFlagCondition `json:"p"`
}

// UserCondition describes a condition based on User Object attributes
type UserCondition struct {
	// ComparisonAttribute is a User Object attribute that the condition is based on. Can be "Identifier", "Email", "Country" or any custom attribute.
	ComparisonAttribute string `json:"a"`
	// StringValue is a value in text format that the User Object attribute is compared to.
	StringValue *string `json:"s"`
	// DoubleValue is a value in numeric format that the User Object attribute is compared to.
	DoubleValue *float64 `json:"d"`
	// StringArrayValue is a value in text array format that the User Object attribute is compared to.
	StringArrayValue []string `json:"l"`
	// Comparator is the operator which defines the relation between the comparison attribute and the comparison value.
	Comparator Comparator `json:"c"`
}

// SegmentCondition describes a condition based on a segment.
type SegmentCondition struct {
	// Index identifies the segment that the condition is based on.
	Index int `json:"s"`
	// Comparator is the operator which defines the expected result of the evaluation of the segment.
	Comparator SegmentComparator `json:"c"`

	// segment is resolved from Index by parseConfig.
	segment *Segment
}

// PrerequisiteFlagCondition describes a condition based on a prerequisite feature flag.
type PrerequisiteFlagCondition struct {
	// FlagKey is the key of the prerequisite flag that the condition is based on.
	FlagKey string `json:"f"`
	// Comparator is the operator which defines the relation between the evaluated value of the prerequisite flag and the comparison value.
	Comparator PrerequisiteComparator `json:"c"`
	// Value that the evaluated value of the prerequisite flag is compared to.
	Value *SettingValue `json:"v"`
}

// SettingValue describes the possible values of a feature flag or setting.
// Exactly one of the fields is expected to be set, matching the
// declared type of the setting that holds it.
type SettingValue struct {
	// BoolValue holds a bool feature flag's value.
	BoolValue *bool `json:"b,omitempty"`
	// StringValue holds a string setting's value.
	StringValue *string `json:"s,omitempty"`
	// IntValue holds a whole number setting's value.
	IntValue *int `json:"i,omitempty"`
	// DoubleValue holds a decimal number setting's value.
	DoubleValue *float64 `json:"d,omitempty"`
}

// Preferences holds the global settings of a config JSON.
type Preferences struct {
	// Salt is mixed into the hash of sensitive comparison values.
	Salt string `json:"s"`
	// URL is the base URL the config should be downloaded from.
	URL string `json:"u"`
	// Redirect tells how URL should be treated. It's one of
	// NoRedirect, ShouldRedirect or ForceRedirect.
	Redirect *RedirectionKind `json:"r"`
}

// RedirectionKind describes how a client reacts to the base URL
// published in Preferences.
type RedirectionKind uint8

const (
	// NoRedirect indicates that the configuration is available
	// in this request, but that the next request should be
	// made to the redirected address.
	NoRedirect RedirectionKind = 0

	// ShouldRedirect indicates that there is no configuration
	// available at this address, and that the client should
	// redirect immediately. This does not take effect when
	// talking to a custom URL.
	ShouldRedirect RedirectionKind = 1

	// ForceRedirect indicates that there is no configuration
	// available at this address, and that the client should redirect
	// immediately even when talking to a custom URL.
	ForceRedirect RedirectionKind = 2
)

// SettingType is the declared type of a setting's values.
type SettingType int8

const (
	BoolSetting   SettingType = 0
	StringSetting SettingType = 1
	IntSetting    SettingType = 2
	FloatSetting  SettingType = 3
)

// UnknownSetting is used where a setting type cannot be determined.
const UnknownSetting SettingType = -1

func (t SettingType) String() string {
	switch t {
	case BoolSetting:
		return "Boolean"
	case StringSetting:
		return "String"
	case IntSetting:
		return "Int"
	case FloatSetting:
		return "Double"
	default:
		return fmt.Sprintf("SettingType(%d)", int8(t))
	}
}

// Comparator is the operator of a user condition.
type Comparator uint8

const (
	OpOneOf                       Comparator = 0
	OpNotOneOf                    Comparator = 1
	OpContains                    Comparator = 2
	OpNotContains                 Comparator = 3
	OpOneOfSemver                 Comparator = 4
	OpNotOneOfSemver              Comparator = 5
	OpLessSemver                  Comparator = 6
	OpLessEqSemver                Comparator = 7
	OpGreaterSemver               Comparator = 8
	OpGreaterEqSemver             Comparator = 9
	OpEqNum                       Comparator = 10
	OpNotEqNum                    Comparator = 11
	OpLessNum                     Comparator = 12
	OpLessEqNum                   Comparator = 13
	OpGreaterNum                  Comparator = 14
	OpGreaterEqNum                Comparator = 15
	OpOneOfHashed                 Comparator = 16
	OpNotOneOfHashed              Comparator = 17
	OpBeforeDateTime              Comparator = 18
	OpAfterDateTime               Comparator = 19
	OpEqHashed                    Comparator = 20
	OpNotEqHashed                 Comparator = 21
	OpStartsWithAnyOfHashed       Comparator = 22
	OpNotStartsWithAnyOfHashed    Comparator = 23
	OpEndsWithAnyOfHashed         Comparator = 24
	OpNotEndsWithAnyOfHashed      Comparator = 25
	OpArrayContainsAnyOfHashed    Comparator = 26
	OpArrayNotContainsAnyOfHashed Comparator = 27
	OpEq                          Comparator = 28
	OpNotEq                       Comparator = 29
	OpStartsWithAnyOf             Comparator = 30
	OpNotStartsWithAnyOf          Comparator = 31
	OpEndsWithAnyOf               Comparator = 32
	OpNotEndsWithAnyOf            Comparator = 33
	OpArrayContainsAnyOf          Comparator = 34
	OpArrayNotContainsAnyOf       Comparator = 35
)

// PrerequisiteComparator is the operator of a prerequisite flag condition.
type PrerequisiteComparator uint8

const (
	OpPrerequisiteEq    PrerequisiteComparator = 0
	OpPrerequisiteNotEq PrerequisiteComparator = 1
)

// SegmentComparator is the operator of a segment condition.
type SegmentComparator uint8

const (
	OpSegmentIsIn    SegmentComparator = 0
	OpSegmentIsNotIn SegmentComparator = 1
)

var opStrings = []string{
	OpOneOf:                       "IS ONE OF",
	OpNotOneOf:                    "IS NOT ONE OF",
	OpContains:                    "CONTAINS ANY OF",
	OpNotContains:                 "NOT CONTAINS ANY OF",
	OpOneOfSemver:                 "IS ONE OF",
	OpNotOneOfSemver:              "IS NOT ONE OF",
	OpLessSemver:                  "<",
	OpLessEqSemver:                "<=",
	OpGreaterSemver:               ">",
	OpGreaterEqSemver:             ">=",
	OpEqNum:                       "=",
	OpNotEqNum:                    "!=",
	OpLessNum:                     "<",
	OpLessEqNum:                   "<=",
	OpGreaterNum:                  ">",
	OpGreaterEqNum:                ">=",
	OpOneOfHashed:                 "IS ONE OF",
	OpNotOneOfHashed:              "IS NOT ONE OF",
	OpBeforeDateTime:              "BEFORE",
	OpAfterDateTime:               "AFTER",
	OpEqHashed:                    "EQUALS",
	OpNotEqHashed:                 "NOT EQUALS",
	OpStartsWithAnyOfHashed:       "STARTS WITH ANY OF",
	OpNotStartsWithAnyOfHashed:    "NOT STARTS WITH ANY OF",
	OpEndsWithAnyOfHashed:         "ENDS WITH ANY OF",
	OpNotEndsWithAnyOfHashed:      "NOT ENDS WITH ANY OF",
	OpArrayContainsAnyOfHashed:    "ARRAY CONTAINS ANY OF",
	OpArrayNotContainsAnyOfHashed: "ARRAY NOT CONTAINS ANY OF",
	OpEq:                          "EQUALS",
	OpNotEq:                       "NOT EQUALS",
	OpStartsWithAnyOf:             "STARTS WITH ANY OF",
	OpNotStartsWithAnyOf:          "NOT STARTS WITH ANY OF",
	OpEndsWithAnyOf:               "ENDS WITH ANY OF",
	OpNotEndsWithAnyOf:            "NOT ENDS WITH ANY OF",
	OpArrayContainsAnyOf:          "ARRAY CONTAINS ANY OF",
	OpArrayNotContainsAnyOf:       "ARRAY NOT CONTAINS ANY OF",
}

var opPrerequisiteStrings = []string{
	OpPrerequisiteEq:    "EQUALS",
	OpPrerequisiteNotEq: "DOES NOT EQUAL",
}

var opSegmentStrings = []string{
	OpSegmentIsIn:    "IS IN SEGMENT",
	OpSegmentIsNotIn: "IS NOT IN SEGMENT",
}

func (op Comparator) String() string {
	if int(op) >= len(opStrings) {
		return ""
	}
	return opStrings[op]
}

// IsValid reports whether op is one of the known comparators.
func (op Comparator) IsValid() bool {
	return int(op) < len(opStrings)
}

func (op Comparator) IsList() bool {
	switch op {
	case OpOneOf, OpOneOfHashed, OpNotOneOf, OpNotOneOfHashed, OpOneOfSemver, OpNotOneOfSemver, OpContains, OpNotContains,
		OpStartsWithAnyOf, OpStartsWithAnyOfHashed, OpEndsWithAnyOf, OpEndsWithAnyOfHashed,
		OpNotStartsWithAnyOf, OpNotStartsWithAnyOfHashed, OpNotEndsWithAnyOf, OpNotEndsWithAnyOfHashed,
		OpArrayContainsAnyOf, OpArrayNotContainsAnyOf, OpArrayContainsAnyOfHashed, OpArrayNotContainsAnyOfHashed:
		return true
	default:
		return false
	}
}

// IsSemver reports whether op compares semantic versions.
func (op Comparator) IsSemver() bool {
	switch op {
	case OpOneOfSemver, OpNotOneOfSemver, OpLessSemver, OpLessEqSemver, OpGreaterSemver, OpGreaterEqSemver:
		return true
	default:
		return false
	}
}

// IsArray reports whether op compares against a user attribute holding a list of strings.
func (op Comparator) IsArray() bool {
	switch op {
	case OpArrayContainsAnyOf, OpArrayNotContainsAnyOf, OpArrayContainsAnyOfHashed, OpArrayNotContainsAnyOfHashed:
		return true
	default:
		return false
	}
}

func (op Comparator) IsNumeric() bool {
	switch op {
	case OpEqNum, OpNotEqNum, OpLessNum, OpLessEqNum, OpGreaterNum, OpGreaterEqNum:
		return true
	default:
		return false
	}
}

func (op Comparator) IsSensitive() bool {
	switch op {
	case OpOneOfHashed, OpNotOneOfHashed, OpEqHashed, OpNotEqHashed, OpStartsWithAnyOfHashed, OpNotStartsWithAnyOfHashed,
		OpEndsWithAnyOfHashed, OpNotEndsWithAnyOfHashed, OpArrayContainsAnyOfHashed, OpArrayNotContainsAnyOfHashed:
		return true
	default:
		return false
	}
}

func (op Comparator) IsDateTime() bool {
	switch op {
	case OpBeforeDateTime, OpAfterDateTime:
		return true
	default:
		return false
	}
}

func (op PrerequisiteComparator) String() string {
	if int(op) >= len(opPrerequisiteStrings) {
		return ""
	}
	return opPrerequisiteStrings[op]
}

func (op SegmentComparator) String() string {
	if int(op) >= len(opSegmentStrings) {
		return ""
	}
	return opSegmentStrings[op]
}

// Type returns the setting type described by the populated field of v,
// or UnknownSetting when zero or several fields are set.
func (v *SettingValue) Type() SettingType {
	if v == nil {
		return UnknownSetting
	}
	t, n := UnknownSetting, 0
	if v.BoolValue != nil {
		t, n = BoolSetting, n+1
	}
	if v.StringValue != nil {
		t, n = StringSetting, n+1
	}
	if v.IntValue != nil {
		t, n = IntSetting, n+1
	}
	if v.DoubleValue != nil {
		t, n = FloatSetting, n+1
	}
	if n != 1 {
		return UnknownSetting
	}
	return t
}

// valueFor returns the Go value held by v for a setting of type t.
// Int and Double are accepted in place of each other when the
// conversion is exact. Any other mismatch is an error.
func (v *SettingValue) valueFor(t SettingType) (interface{}, error) {
	if v == nil || (v.BoolValue == nil && v.StringValue == nil && v.IntValue == nil && v.DoubleValue == nil) {
		return nil, errMissingValue
	}
	switch t {
	case BoolSetting:
		if v.BoolValue != nil {
			return *v.BoolValue, nil
		}
	case StringSetting:
		if v.StringValue != nil {
			return *v.StringValue, nil
		}
	case IntSetting:
		if v.IntValue != nil {
			return *v.IntValue, nil
		}
		if v.DoubleValue != nil && *v.DoubleValue == math.Trunc(*v.DoubleValue) {
			return int(*v.DoubleValue), nil
		}
	case FloatSetting:
		if v.DoubleValue != nil {
			return *v.DoubleValue, nil
		}
		if v.IntValue != nil {
			return float64(*v.IntValue), nil
		}
	default:
		return nil, fmt.Errorf("unsupported setting type %v", t)
	}
	return nil, &ErrTypeMismatch{Expected: t, Actual: v.Type()}
}

// NewBoolValue returns a SettingValue holding b.
func NewBoolValue(b bool) *SettingValue {
	return &SettingValue{BoolValue: &b}
}

// NewStringValue returns a SettingValue holding s.
func NewStringValue(s string) *SettingValue {
	return &SettingValue{StringValue: &s}
}

// NewIntValue returns a SettingValue holding i.
func NewIntValue(i int) *SettingValue {
	return &SettingValue{IntValue: &i}
}

// NewFloatValue returns a SettingValue holding f.
func NewFloatValue(f float64) *SettingValue {
	return &SettingValue{DoubleValue: &f}
}

// NewSettingValue returns a SettingValue holding x, which must be
// a bool, string, int or float64.
func NewSettingValue(x interface{}) (*SettingValue, error) {
	switch x := x.(type) {
	case bool:
		return NewBoolValue(x), nil
	case string:
		return NewStringValue(x), nil
	case int:
		return NewIntValue(x), nil
	case float64:
		return NewFloatValue(x), nil
	}
	return nil, fmt.Errorf("value %#v has unsupported type %T; must be bool, string, int or float64", x, x)
}

// SettingTypeOf returns the setting type matching the dynamic type of x.
func SettingTypeOf(x interface{}) SettingType {
	switch x.(type) {
	case bool:
		return BoolSetting
	case string:
		return StringSetting
	case int:
		return IntSetting
	case float64:
		return FloatSetting
	}
	return UnknownSetting
}
