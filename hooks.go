package configcat

import "fmt"

// Hooks describes the events sent by Client.
//
// Hook functions are called synchronously from the goroutine that
// triggered the event, so they should return quickly. A panic in a hook
// is recovered and reported to OnError.
type Hooks struct {
	// OnFlagEvaluated is called each time when the SDK evaluates a feature flag or setting.
	OnFlagEvaluated func(details *EvaluationDetails)

	// OnError is called when an error occurs inside the ConfigCat SDK.
	OnError func(err error)

	// OnConfigChanged is called, when a new config.json has downloaded.
	// It's passed the settings of the new config.
	OnConfigChanged func(settings map[string]*Setting)

	// OnClientReady is called once, when the client has either obtained
	// its first config or has given up waiting for it.
	OnClientReady func()
}

func (h *Hooks) invokeOnFlagEvaluated(log *leveledLogger, details *EvaluationDetails) {
	if h == nil || h.OnFlagEvaluated == nil {
		return
	}
	defer h.recoverHook(log, "OnFlagEvaluated")
	h.OnFlagEvaluated(details)
}

func (h *Hooks) invokeOnConfigChanged(log *leveledLogger, settings map[string]*Setting) {
	if h == nil || h.OnConfigChanged == nil {
		return
	}
	defer h.recoverHook(log, "OnConfigChanged")
	h.OnConfigChanged(settings)
}

func (h *Hooks) invokeOnClientReady(log *leveledLogger) {
	if h == nil || h.OnClientReady == nil {
		return
	}
	defer h.recoverHook(log, "OnClientReady")
	h.OnClientReady()
}

// invokeOnError calls OnError. A panic in OnError itself is only
// logged, as there's nowhere else to report it.
func (h *Hooks) invokeOnError(log *leveledLogger, err error) {
	if h == nil || h.OnError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && log.enabled(LogLevelError) {
			log.Logger.Errorf("[%d] OnError hook panicked: %v", 1200, r)
		}
	}()
	h.OnError(err)
}

func (h *Hooks) recoverHook(log *leveledLogger, name string) {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}
	log.Errorf(1200, "%s hook panicked: %w", name, err)
}
