package configcat

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// evaluator resolves feature flag values. It holds no per-evaluation
// state and is safe for concurrent use.
type evaluator struct {
	logger *leveledLogger
	hasher ComparisonHasher
}

func newEvaluator(logger *leveledLogger, hasher ComparisonHasher) *evaluator {
	if hasher == nil {
		hasher = DefaultComparisonHasher()
	}
	return &evaluator{
		logger: logger,
		hasher: hasher,
	}
}

// evalResult holds the outcome of a successful evaluation.
type evalResult struct {
	value       interface{}
	variationID string
	rule        *TargetingRule
	option      *PercentageOption
	// trace holds the evaluation log when Info level logging is enabled.
	trace string
}

// evalContext holds the state of one setting's evaluation. A new context
// is made for each prerequisite flag; state is shared by all of them.
type evalContext struct {
	config  *ConfigJson
	key     string
	setting *Setting
	user    User
	// visitedKeys holds the chain of keys from the evaluated flag to this
	// one. It's copied, never appended to in place.
	visitedKeys []string
	state       *evalState
}

// evalState is shared by all contexts of a single top-level evaluation.
type evalState struct {
	log                    *evalLogBuilder
	missingUserLogged      bool
	missingAttributeLogged bool
}

func (ctx *evalContext) forPrerequisite(key string, setting *Setting) *evalContext {
	visited := make([]string, len(ctx.visitedKeys), len(ctx.visitedKeys)+1)
	copy(visited, ctx.visitedKeys)
	return &evalContext{
		config:      ctx.config,
		key:         key,
		setting:     setting,
		user:        ctx.user,
		visitedKeys: append(visited, key),
		state:       ctx.state,
	}
}

// evaluate returns the value of the setting with the given key for user.
// Identical arguments always produce identical results and traces.
func (e *evaluator) evaluate(cfg *ConfigJson, key string, user User) (evalResult, error) {
	if isNilUser(user) {
		user = nil
	}
	if cfg == nil {
		return evalResult{}, ErrConfigJsonMissing{Key: key}
	}
	setting, ok := cfg.Settings[key]
	if !ok {
		return evalResult{}, ErrKeyNotFound{Key: key, AvailableKeys: keysForRootNode(cfg)}
	}
	ctx := &evalContext{
		config:      cfg,
		key:         key,
		setting:     setting,
		user:        user,
		visitedKeys: []string{key},
		state:       &evalState{},
	}
	if e.logger.enabled(LogLevelInfo) {
		ctx.state.log = &evalLogBuilder{}
	}
	b := ctx.state.log
	b.appendf("Evaluating '%s'", key)
	if user != nil {
		b.appendf(" for User '%s'", formatUser(user))
	}
	b.incIndent()
	res, err := e.evalSetting(ctx)
	if err != nil {
		res = evalResult{}
		b.newLineString("Evaluation failed: " + err.Error())
	} else {
		b.newLineString("Returning " + formatValue(res.value) + ".")
	}
	b.decIndent()
	if b != nil {
		res.trace = b.String()
		e.logger.Infof(5000, "%s", res.trace)
	}
	return res, err
}

// evalSetting evaluates the targeting rules and then the percentage
// options of ctx.setting, falling back to its base value. Errors that
// only make a single rule unusable are handled here; any returned
// error aborts the whole evaluation.
func (e *evaluator) evalSetting(ctx *evalContext) (evalResult, error) {
	setting := ctx.setting
	b := ctx.state.log
	if len(setting.TargetingRules) > 0 {
		b.newLineString("Evaluating targeting rules and applying the first match if any:")
		for _, rule := range setting.TargetingRules {
			if rule == nil {
				continue
			}
			res, matched, err := e.evalTargetingRule(ctx, rule)
			if err != nil {
				return evalResult{}, err
			}
			if matched {
				return res, nil
			}
		}
	}
	if len(setting.PercentageOptions) > 0 {
		res, matched, err := e.evalPercentageOptions(ctx, setting.PercentageOptions, nil)
		if err != nil {
			return evalResult{}, err
		}
		if matched {
			return res, nil
		}
	}
	value, err := setting.Value.valueFor(setting.Type)
	if err != nil {
		return evalResult{}, fmt.Errorf("setting '%s' has an invalid value: %w", ctx.key, err)
	}
	return evalResult{value: value, variationID: setting.VariationID}, nil
}

func (e *evaluator) evalTargetingRule(ctx *evalContext, rule *TargetingRule) (evalResult, bool, error) {
	b := ctx.state.log
	b.newLineString("- ")
	matched, err := e.evalConditions(ctx, rule.Conditions)
	if err != nil {
		if !isSkip(err) {
			return evalResult{}, false, err
		}
		b.incIndent().newLine().appendThen(rule, ctx.setting.Type).append(" => cannot evaluate, " + err.Error())
		b.newLineString("The current targeting rule is ignored and the evaluation continues with the next rule.").decIndent()
		return evalResult{}, false, nil
	}
	if !matched {
		b.incIndent().newLine().appendThen(rule, ctx.setting.Type).append(" => no match").decIndent()
		return evalResult{}, false, nil
	}
	b.incIndent().newLine().appendThen(rule, ctx.setting.Type).append(" => MATCH, applying rule").decIndent()

	if rule.ServedValue != nil {
		value, err := rule.ServedValue.Value.valueFor(ctx.setting.Type)
		if err != nil {
			return evalResult{}, false, fmt.Errorf("targeting rule of setting '%s' has an invalid value: %w", ctx.key, err)
		}
		return evalResult{value: value, variationID: rule.ServedValue.VariationID, rule: rule}, true, nil
	}
	if len(rule.PercentageOptions) == 0 {
		return evalResult{}, false, fmt.Errorf("targeting rule of setting '%s' has neither a value nor percentage options: %w", ctx.key, errMissingValue)
	}
	b.incIndent()
	res, matched, err := e.evalPercentageOptions(ctx, rule.PercentageOptions, rule)
	if err == nil && !matched {
		b.newLineString("The current targeting rule is ignored and the evaluation continues with the next rule.")
	}
	b.decIndent()
	return res, matched, err
}

// evalConditions AND-combines conditions, stopping at the first one
// that doesn't hold.
func (e *evaluator) evalConditions(ctx *evalContext, conditions []*Condition) (bool, error) {
	b := ctx.state.log
	for i, cond := range conditions {
		if i == 0 {
			b.append("IF ")
		} else {
			b.incIndent().newLineString("AND ")
		}
		matched, err := e.evalCondition(ctx, cond)
		switch {
		case err != nil:
			b.append(" => cannot evaluate")
		case matched:
			b.append(" => true")
		default:
			b.append(" => false")
			if i < len(conditions)-1 {
				b.append(", skipping the remaining AND conditions")
			}
		}
		if i > 0 {
			b.decIndent()
		}
		if err != nil || !matched {
			return false, err
		}
	}
	return true, nil
}

func (e *evaluator) evalCondition(ctx *evalContext, cond *Condition) (bool, error) {
	switch {
	case cond == nil:
	case cond.UserCondition != nil:
		return e.evalUserCondition(ctx, cond.UserCondition, ctx.key)
	case cond.SegmentCondition != nil:
		return e.evalSegmentCondition(ctx, cond.SegmentCondition)
	case cond.PrerequisiteFlagCondition != nil:
		return e.evalPrerequisiteCondition(ctx, cond.PrerequisiteFlagCondition)
	}
	return false, fmt.Errorf("condition of setting '%s' has no user, segment or prerequisite flag part", ctx.key)
}

// evalPercentageOptions selects one of options by hashing the
// percentage attribute of the user. rule is the targeting rule the
// options belong to, if any.
func (e *evaluator) evalPercentageOptions(ctx *evalContext, options []*PercentageOption, rule *TargetingRule) (evalResult, bool, error) {
	b := ctx.state.log
	if ctx.user == nil {
		e.logMissingUser(ctx)
		b.newLineString("Skipping % options because the User Object is missing.")
		return evalResult{}, false, nil
	}
	attr := ctx.setting.PercentageOptionsAttribute
	if attr == "" {
		attr = identifierAttr
	}
	attrValue, ok := percentageAttributeValue(ctx.user, attr)
	if !ok {
		e.logMissingAttribute(ctx, attr)
		b.newLineString(fmt.Sprintf("Skipping %% options because the User.%s attribute is missing.", attr))
		return evalResult{}, false, nil
	}
	b.newLineString(fmt.Sprintf("Evaluating %% options based on the User.%s attribute:", attr))
	bucket := percentageBucket(ctx.key, attrValue)
	b.newLineString(fmt.Sprintf("- Computing hash in the [0..99] range from User.%s => %d (this value is sticky and consistent across all SDKs)", attr, bucket))

	cumulative := int64(0)
	for i, option := range options {
		if option == nil {
			continue
		}
		cumulative += option.Percentage
		if bucket >= cumulative {
			continue
		}
		value, err := option.Value.valueFor(ctx.setting.Type)
		if err != nil {
			return evalResult{}, false, fmt.Errorf("percentage option of setting '%s' has an invalid value: %w", ctx.key, err)
		}
		b.newLineString(fmt.Sprintf("- Hash value %d selects %% option %d (%d%%), %s.", bucket, i+1, option.Percentage, formatValue(value)))
		return evalResult{
			value:       value,
			variationID: option.VariationID,
			rule:        rule,
			option:      option,
		}, true, nil
	}
	b.newLineString(fmt.Sprintf("- Hash value %d does not select any %% option.", bucket))
	return evalResult{}, false, nil
}

// percentageAttributeValue returns the text form of attr. A missing
// Identifier is treated as the empty string.
func percentageAttributeValue(user User, attr string) (string, bool) {
	v := user.GetAttribute(attr)
	if isMissingAttribute(v) {
		return "", attr == identifierAttr
	}
	return attributeText(v), true
}

// percentageBucket returns the bucket in [0, 100) that the given
// setting key and attribute value hash into.
func percentageBucket(key string, attrValue string) int64 {
	hashKey := make([]byte, 0, len(key)+len(attrValue))
	hashKey = append(hashKey, key...)
	hashKey = append(hashKey, attrValue...)
	sum := sha1.Sum(hashKey)
	// Treat the first 4 bytes as a number, then knock
	// off the last 4 bits. This is equivalent to turning the
	// entire sum into hex, then decoding the first 7 digits.
	num := int64(binary.BigEndian.Uint32(sum[:4]))
	num >>= 4
	return num % 100
}

func (e *evaluator) logMissingUser(ctx *evalContext) {
	if ctx.state.missingUserLogged {
		return
	}
	ctx.state.missingUserLogged = true
	e.logger.Warnf(3001, "cannot evaluate targeting rules and %% options for setting '%s' (User Object is missing); "+
		"you should pass a User Object to the evaluation methods like `GetValue()` in order to make targeting work properly",
		ctx.rootKey())
}

func (e *evaluator) logMissingAttribute(ctx *evalContext, attr string) {
	if ctx.state.missingAttributeLogged {
		return
	}
	ctx.state.missingAttributeLogged = true
	e.logger.Warnf(3003, "cannot evaluate condition or %% options for setting '%s' (the User.%s attribute is missing); "+
		"you should set the User.%s attribute in order to make targeting work properly",
		ctx.rootKey(), attr, attr)
}

func (ctx *evalContext) rootKey() string {
	return ctx.visitedKeys[0]
}

// parseFloat parses a float allowing comma as a decimal point.
func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", -1), 64)
}
