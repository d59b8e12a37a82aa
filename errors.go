package configcat

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOffline is returned by refresh operations while the client is in offline mode.
var ErrOffline = errors.New("client is in offline mode, it cannot initiate HTTP calls")

// ErrKeyNotFound is returned when a key is not found in the configuration.
type ErrKeyNotFound struct {
	Key           string
	AvailableKeys []string
}

func (e ErrKeyNotFound) Error() string {
	var availableKeys = ""
	if len(e.AvailableKeys) > 0 {
		availableKeys = "'" + strings.Join(e.AvailableKeys, "', '") + "'"
	}
	return fmt.Sprintf(
		"failed to evaluate setting '%s' (the key was not found in config JSON); available keys: [%s]",
		e.Key,
		availableKeys,
	)
}

// ErrConfigJsonMissing is returned when a flag is evaluated before any
// config JSON is available.
type ErrConfigJsonMissing struct {
	Key string
}

func (e ErrConfigJsonMissing) Error() string {
	return fmt.Sprintf("config JSON is not present when evaluating setting '%s'; returning the default value", e.Key)
}

// ErrCircularDependency is returned when prerequisite flags depend on
// each other. Chain holds the keys in evaluation order, ending with the
// key that closes the cycle.
type ErrCircularDependency struct {
	Chain []string
}

func (e *ErrCircularDependency) Error() string {
	return "circular dependency detected between the following depending flags: " + formatKeyChain(e.Chain)
}

func formatKeyChain(keys []string) string {
	return "'" + strings.Join(keys, "' -> '") + "'"
}

// ErrTypeMismatch is returned when a value doesn't have the type it's
// expected to have.
type ErrTypeMismatch struct {
	Expected SettingType
	Actual   SettingType
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("type mismatch: expected a value of type %v, got %v", e.Expected, e.Actual)
}

// ErrPrerequisiteNotFound is returned when a prerequisite flag condition
// refers to a key that the config doesn't contain.
type ErrPrerequisiteNotFound struct {
	Key string
}

func (e *ErrPrerequisiteNotFound) Error() string {
	return fmt.Sprintf("prerequisite flag '%s' is missing", e.Key)
}

// ComparisonValueError is returned when a condition has no comparison
// value suitable for its comparator.
type ComparisonValueError struct {
	Comparator Comparator
}

func (e *ComparisonValueError) Error() string {
	return fmt.Sprintf("comparison value is missing or invalid for comparator %q", e.Comparator)
}

var errMissingValue = errors.New("setting value is missing or invalid")

// conditionSkip reports a condition that could not be evaluated for
// the current user. The enclosing targeting rule is skipped but the
// evaluation continues.
type conditionSkip struct {
	reason string
}

func (e *conditionSkip) Error() string {
	return e.reason
}

func skipf(format string, args ...interface{}) error {
	return &conditionSkip{reason: fmt.Sprintf(format, args...)}
}

func isSkip(err error) bool {
	var skip *conditionSkip
	return errors.As(err, &skip)
}
