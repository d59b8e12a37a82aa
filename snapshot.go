package configcat

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Snapshot holds a snapshot of the ConfigCat configuration associated
// with a user. A snapshot is immutable once taken, so evaluating the
// same key on it always yields the same value.
//
// A nil snapshot is OK to use and acts like a configuration
// with no keys.
type Snapshot struct {
	evaluator   *evaluator
	entry       *configEntry
	user        User
	defaultUser User
	logger      *leveledLogger
	hooks       *Hooks
}

// NewSnapshot returns a snapshot that always returns the given values.
//
// Each entry in the values map is keyed by a flag
// name and holds the value that the snapshot will return
// for that flag. Each value must be one of the types
// bool, int, float64, or string.
//
// The returned snapshot does not support variation IDs. That is, given a
// snapshot s returned by NewSnapshot, s.GetKeyValueForVariationID returns "", nil.
func NewSnapshot(logger Logger, values map[string]interface{}) (*Snapshot, error) {
	root := &ConfigJson{
		Settings: make(map[string]*Setting, len(values)),
	}
	for name, val := range values {
		v, err := NewSettingValue(val)
		if err != nil {
			return nil, fmt.Errorf("value for flag %q has unexpected type %T (%#v); must be bool, int, float64 or string", name, val, val)
		}
		root.Settings[name] = &Setting{
			Type:  SettingTypeOf(val),
			Value: v,
		}
	}
	l := newLeveledLogger(logger, 0, nil)
	return &Snapshot{
		evaluator: newEvaluator(l, nil),
		entry: &configEntry{
			root:      root,
			keys:      keysForRootNode(root),
			keyValues: map[string]keyValue{},
		},
		logger: l,
	}, nil
}

func newSnapshot(ev *evaluator, entry *configEntry, user, defaultUser User, logger *leveledLogger, hooks *Hooks) *Snapshot {
	snap := &Snapshot{
		evaluator:   ev,
		entry:       entry,
		defaultUser: defaultUser,
		logger:      logger,
		hooks:       hooks,
	}
	snap.user = snap.userOrDefault(user)
	return snap
}

func (snap *Snapshot) userOrDefault(user User) User {
	if isNilUser(user) {
		return snap.defaultUser
	}
	return user
}

// WithUser returns a copy of s associated with the
// given user. If snap is nil, it returns nil.
// If user is nil, it uses Config.DefaultUser.
func (snap *Snapshot) WithUser(user User) *Snapshot {
	if snap == nil {
		return nil
	}
	snap1 := *snap
	snap1.user = snap.userOrDefault(user)
	return &snap1
}

func (snap *Snapshot) root() *ConfigJson {
	if snap == nil || snap.entry.isEmpty() {
		return nil
	}
	return snap.entry.root
}

// details evaluates key. If defaultValue is not nil, the result is
// converted to its type and defaultValue is returned when that isn't
// possible.
func (snap *Snapshot) details(key string, defaultValue interface{}) EvaluationDetails {
	if snap == nil {
		return EvaluationDetails{
			Value: defaultValue,
			Data: EvaluationDetailsData{
				Key:            key,
				IsDefaultValue: true,
				Error:          ErrConfigJsonMissing{Key: key},
			},
		}
	}
	res, err := snap.evaluator.evaluate(snap.root(), key, snap.user)
	var value interface{}
	if err == nil {
		value, err = coerceValue(res.value, defaultValue)
	}
	var details EvaluationDetails
	if err != nil {
		snap.logEvalError(key, defaultValue, err)
		details = EvaluationDetails{
			Value: defaultValue,
			Data: EvaluationDetailsData{
				Key:            key,
				User:           snap.user,
				IsDefaultValue: true,
				Error:          err,
				FetchTime:      snap.FetchTime(),
			},
		}
	} else {
		details = EvaluationDetails{
			Value: value,
			Data: EvaluationDetailsData{
				Key:                     key,
				VariationID:             res.variationID,
				User:                    snap.user,
				FetchTime:               snap.FetchTime(),
				MatchedTargetingRule:    res.rule,
				MatchedPercentageOption: res.option,
			},
		}
	}
	snap.hooks.invokeOnFlagEvaluated(snap.logger, &details)
	return details
}

func (snap *Snapshot) logEvalError(key string, defaultValue interface{}, err error) {
	var notFound ErrKeyNotFound
	var missing ErrConfigJsonMissing
	var mismatch *ErrTypeMismatch
	switch {
	case errors.As(err, &notFound):
		snap.logger.Errorf(1001, "%w; returning the default value: '%v'", err, defaultValue)
	case errors.As(err, &missing):
		snap.logger.Errorf(1000, "%w", err)
	case errors.As(err, &mismatch):
		snap.logger.Errorf(2002, "the type of setting '%s' doesn't match the type of the default value: %w; returning the default value: '%v'", key, err, defaultValue)
	default:
		snap.logger.Errorf(1002, "error occurred while evaluating setting '%s': %w; returning the default value: '%v'", key, err, defaultValue)
	}
}

// coerceValue converts value to the type of defaultValue. Whole number
// and decimal values are interchangeable as long as no information is
// lost.
func coerceValue(value, defaultValue interface{}) (interface{}, error) {
	switch defaultValue.(type) {
	case nil:
		return value, nil
	case bool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	case string:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case int:
		switch v := value.(type) {
		case int:
			return v, nil
		case float64:
			if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
				return int(v), nil
			}
		}
	case float64:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		}
	default:
		return nil, fmt.Errorf("default value has unsupported type %T; must be bool, int, float64 or string", defaultValue)
	}
	return nil, &ErrTypeMismatch{
		Expected: SettingTypeOf(defaultValue),
		Actual:   SettingTypeOf(value),
	}
}

// GetValue returns a feature flag value regardless of type. If there is no
// value found, it returns nil; otherwise the returned value
// has one of the dynamic types bool, int, float64, or string.
//
// To use obtain the value of a typed feature flag, use
// one of the typed feature flag functions. For example:
//
//	someFlag := configcat.Bool("someFlag", false)
//	value := someFlag.Get(snap)
func (snap *Snapshot) GetValue(key string) interface{} {
	return snap.details(key, nil).Value
}

// GetValueDetails returns the value and evaluation details of a feature flag or setting
// with respect to the current user, or nil if none is found.
func (snap *Snapshot) GetValueDetails(key string) EvaluationDetails {
	return snap.details(key, nil)
}

// GetAllValueDetails returns values along with evaluation details of all feature flags and settings.
func (snap *Snapshot) GetAllValueDetails() []EvaluationDetails {
	keys := snap.GetAllKeys()
	if len(keys) == 0 {
		return nil
	}
	details := make([]EvaluationDetails, 0, len(keys))
	for _, key := range keys {
		details = append(details, snap.details(key, nil))
	}
	return details
}

// GetKeyValueForVariationID returns the key and value that
// are associated with the given variation ID. If the
// variation ID isn't found, it returns "", nil.
func (snap *Snapshot) GetKeyValueForVariationID(id string) (string, interface{}) {
	if snap == nil {
		return "", nil
	}
	key, value := snap.entry.getKeyAndValueForVariation(id)
	if key == "" {
		snap.logger.Errorf(2011, "could not find the setting for the specified variation ID: '%s'; returning nil", id)
		return "", nil
	}
	return key, value
}

// GetAllKeys returns all the known keys in alphabetical order.
func (snap *Snapshot) GetAllKeys() []string {
	if snap == nil || snap.entry.isEmpty() {
		return nil
	}
	return snap.entry.keys
}

// GetAllValues returns all keys and values in freshly allocated key-value map.
func (snap *Snapshot) GetAllValues() map[string]interface{} {
	keys := snap.GetAllKeys()
	values := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		values[key] = snap.GetValue(key)
	}
	return values
}

// FetchTime returns the time the snapshot's config was fetched, or the
// zero time if there's no config.
func (snap *Snapshot) FetchTime() time.Time {
	if snap == nil || snap.entry.isEmpty() {
		return time.Time{}
	}
	return snap.entry.fetchTime
}

// User returns the user the snapshot evaluates flags for.
func (snap *Snapshot) User() User {
	if snap == nil {
		return nil
	}
	return snap.user
}
