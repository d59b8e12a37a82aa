package configcat

// fetchCall represents an in-flight config fetch. Callers that need the
// result wait for done to be closed, after which entry and err are
// immutable.
type fetchCall struct {
	done  chan struct{}
	entry *configEntry
	err   error
}

func newFetchCall() *fetchCall {
	return &fetchCall{
		done: make(chan struct{}),
	}
}

// complete records the result and wakes every waiter.
func (c *fetchCall) complete(entry *configEntry, err error) {
	c.entry = entry
	c.err = err
	close(c.done)
}
