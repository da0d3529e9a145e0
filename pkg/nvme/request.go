package nvme

// request is the part shared by the format and firmware commit builders.
// Its node is a child of the lock, so releasing the lock closes the request.
type request struct {
	lock     *lockState
	node     *node
	consumed bool
}

func (r *request) usable() error {
	if r.consumed {
		return ErrRequestConsumed
	}
	if !r.lock.node.alive() {
		return ErrLockReleased
	}
	if !r.node.alive() {
		return ErrClosed
	}
	return nil
}

// consume marks the request spent and frees its handle.
func (r *request) consume() {
	r.consumed = true
	r.node.close()
}

// reject consumes the request because of a locally detected error.
func (r *request) reject(err error) error {
	r.node.fail(err)
	r.consume()
	return err
}

// set forwards one field to the library. A failure consumes the request.
func (r *request) set(op string, fn func() bool, context func() string) error {
	if err := r.usable(); err != nil {
		return err
	}
	ok := r.node.call(op, fn)
	if err := r.node.check(ok, r.lock.ctrl.errs, context); err != nil {
		r.consume()
		return err
	}
	return nil
}

// exec submits the request and consumes it whatever the outcome.
func (r *request) exec(op string, fn func() bool, context string) error {
	if err := r.usable(); err != nil {
		return err
	}
	ok := r.node.call(op, fn)
	err := r.node.check(ok, r.lock.ctrl.errs, staticContext(context))
	r.consume()
	return err
}

func (r *request) close() error {
	r.consumed = true
	r.node.close()
	return nil
}
