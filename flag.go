package configcat

// Bool returns a representation of a boolean-valued flag.
// This can to be used as the value of a global variable
// for a specific flag; for example:
//
//	var fooFlag = configcat.Bool("foo", false)
//
//	func someRequest(client *configcat.Client) {
//		if fooFlag.Get(client.Snapshot(nil)) {
//			// foo is enabled.
//		}
//	}
func Bool(key string, defaultValue bool) BoolFlag {
	return BoolFlag{
		key:          key,
		defaultValue: defaultValue,
	}
}

type BoolFlag struct {
	key          string
	defaultValue bool
}

// Key returns the name of the flag as passed to Bool.
func (f BoolFlag) Key() string {
	return f.key
}

// Get reports whether the flag is enabled with respect to the
// given snapshot. It returns the flag's default value if snap is nil
// or the key isn't in the configuration.
func (f BoolFlag) Get(snap *Snapshot) bool {
	return f.GetWithDetails(snap).Value
}

// GetWithDetails returns the evaluation details along with the flag's value.
// It returns BoolEvaluationDetails with the flag's default value if snap is nil
// or the key isn't in the configuration.
func (f BoolFlag) GetWithDetails(snap *Snapshot) BoolEvaluationDetails {
	details := snap.details(f.key, f.defaultValue)
	v, _ := details.Value.(bool)
	return BoolEvaluationDetails{Data: details.Data, Value: v}
}

// Int is like Bool but for int-valued flags.
func Int(key string, defaultValue int) IntFlag {
	return IntFlag{
		key:          key,
		defaultValue: defaultValue,
	}
}

type IntFlag struct {
	key          string
	defaultValue int
}

// Key returns the name of the flag as passed to Int.
func (f IntFlag) Key() string {
	return f.key
}

// Get reports the value of the flag with respect to the
// given snapshot. It returns the flag's default value if snap is nil
// or the key isn't in the configuration.
func (f IntFlag) Get(snap *Snapshot) int {
	return f.GetWithDetails(snap).Value
}

// GetWithDetails is like BoolFlag.GetWithDetails for int-valued flags.
func (f IntFlag) GetWithDetails(snap *Snapshot) IntEvaluationDetails {
	details := snap.details(f.key, f.defaultValue)
	v, _ := details.Value.(int)
	return IntEvaluationDetails{Data: details.Data, Value: v}
}

// String is like Bool but for string-valued flags.
func String(key string, defaultValue string) StringFlag {
	return StringFlag{
		key:          key,
		defaultValue: defaultValue,
	}
}

type StringFlag struct {
	key          string
	defaultValue string
}

// Key returns the name of the flag as passed to String.
func (f StringFlag) Key() string {
	return f.key
}

// Get reports the value of the flag with respect to the
// given snapshot. It returns the flag's default value if snap is nil
// or the key isn't in the configuration.
func (f StringFlag) Get(snap *Snapshot) string {
	return f.GetWithDetails(snap).Value
}

// GetWithDetails is like BoolFlag.GetWithDetails for string-valued flags.
func (f StringFlag) GetWithDetails(snap *Snapshot) StringEvaluationDetails {
	details := snap.details(f.key, f.defaultValue)
	v, _ := details.Value.(string)
	return StringEvaluationDetails{Data: details.Data, Value: v}
}

// Float is like Bool but for float-valued flags.
func Float(key string, defaultValue float64) FloatFlag {
	return FloatFlag{
		key:          key,
		defaultValue: defaultValue,
	}
}

type FloatFlag struct {
	key          string
	defaultValue float64
}

// Key returns the name of the flag as passed to Float.
func (f FloatFlag) Key() string {
	return f.key
}

// Get reports the value of the flag with respect to the
// given snapshot. It returns the flag's default value if snap is nil
// or the key isn't in the configuration.
func (f FloatFlag) Get(snap *Snapshot) float64 {
	return f.GetWithDetails(snap).Value
}

// GetWithDetails is like BoolFlag.GetWithDetails for float-valued flags.
func (f FloatFlag) GetWithDetails(snap *Snapshot) FloatEvaluationDetails {
	details := snap.details(f.key, f.defaultValue)
	v, _ := details.Value.(float64)
	return FloatEvaluationDetails{Data: details.Data, Value: v}
}
