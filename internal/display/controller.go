// Package display holds the viewer's display state and mediates the
// one user action that changes it: asking the picture service for a
// new picture.
//
// A Controller is owned by a single event loop goroutine. Service calls
// run in their own goroutines and report back on Results; the loop
// hands each result to Resolve, which is the only writer of the State.
package display

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anastasop/snapview/internal/picture"
)

// State is the image currently shown.
type State struct {
	// ImageLocation is the locator of the image. It is never empty.
	ImageLocation string
}

// Service produces new picture locators on demand.
type Service interface {
	TakePicture(ctx context.Context) (string, error)
}

// Result is the outcome of one service call.
type Result struct {
	Seq     uint64        // issue order of the call, starting at 1
	Locator string        // new locator on success
	Err     error         // why the call failed
	Elapsed time.Duration // how long the call took
}

// Ordering decides how overlapping service calls are applied.
type Ordering int

const (
	// Sequenced applies a success only if no later issued call has
	// been applied already.
	Sequenced Ordering = iota
	// Arrival applies every success in the order results arrive,
	// so the last one to resolve wins.
	Arrival
	// SingleFlight ignores triggers while a call is outstanding.
	SingleFlight
)

var orderingNames = map[Ordering]string{
	Sequenced:    "sequenced",
	Arrival:      "arrival",
	SingleFlight: "single",
}

func (o Ordering) String() string {
	if s, ok := orderingNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Ordering(%d)", int(o))
}

// ParseOrdering returns the ordering with name s.
func ParseOrdering(s string) (Ordering, error) {
	for o, name := range orderingNames {
		if name == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown ordering %q", s)
}

// Controller owns the display state.
type Controller struct {
	state    State
	svc      Service
	log      *zap.Logger
	ordering Ordering
	onChange func(State)

	results chan Result
	issued  uint64 // sequence of the last issued call
	applied uint64 // sequence of the last applied success
	pending int    // calls issued but not resolved
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger that receives diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// WithOrdering sets the policy for overlapping calls.
func WithOrdering(o Ordering) Option {
	return func(c *Controller) {
		c.ordering = o
	}
}

// New returns a controller showing defaultLocator.
func New(defaultLocator string, svc Service, opts ...Option) *Controller {
	if defaultLocator == "" {
		panic("display: empty default locator")
	}
	c := &Controller{
		state:   State{ImageLocation: defaultLocator},
		svc:     svc,
		log:     zap.NewNop(),
		results: make(chan Result),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current display state.
func (c *Controller) State() State {
	return c.state
}

// Status returns what the render needs besides the state.
func (c *Controller) Status() Status {
	return Status{
		Pending: c.pending,
		Busy:    c.ordering == SingleFlight && c.pending > 0,
	}
}

// Pending returns the number of outstanding calls.
func (c *Controller) Pending() int {
	return c.pending
}

// OnChange registers fn to run after every state change.
func (c *Controller) OnChange(fn func(State)) {
	c.onChange = fn
}

// Results delivers the outcome of calls. The event loop must
// pass every value received here to Resolve.
func (c *Controller) Results() <-chan Result {
	return c.results
}

// RequestNewPicture starts one service call and returns without
// waiting for it. It reports whether a call was issued; only the
// SingleFlight ordering declines. If ctx ends before the loop
// receives the result, the result is dropped.
func (c *Controller) RequestNewPicture(ctx context.Context) bool {
	if c.ordering == SingleFlight && c.pending > 0 {
		c.log.Debug("picture request ignored, another is in flight", zap.Int("pending", c.pending))
		return false
	}

	c.issued++
	c.pending++
	seq := c.issued
	c.log.Debug("picture requested", zap.Uint64("seq", seq), zap.Int("pending", c.pending))

	go func() {
		start := time.Now()
		loc, err := c.svc.TakePicture(ctx)
		r := Result{Seq: seq, Locator: loc, Err: err, Elapsed: time.Since(start)}
		select {
		case c.results <- r:
		case <-ctx.Done():
		}
	}()
	return true
}

// Resolve applies a result received from Results. It reports whether
// the state changed. Failures leave the state alone and are logged
// as a single warning.
func (c *Controller) Resolve(r Result) bool {
	if c.pending > 0 {
		c.pending--
	}

	if r.Err == nil && r.Locator == "" {
		r.Err = &picture.ProtocolError{Reason: "empty locator"}
	}
	if r.Err != nil {
		c.diagnose(r)
		return false
	}

	if c.ordering == Sequenced && r.Seq < c.applied {
		c.log.Debug("stale picture discarded",
			zap.Uint64("seq", r.Seq),
			zap.Uint64("applied", c.applied),
			zap.String("image", r.Locator))
		return false
	}

	c.applied = max(c.applied, r.Seq)
	c.state.ImageLocation = r.Locator
	c.log.Info("picture updated",
		zap.Uint64("seq", r.Seq),
		zap.String("image", r.Locator),
		zap.Duration("elapsed", r.Elapsed))
	if c.onChange != nil {
		c.onChange(c.state)
	}
	return true
}

// Wait resolves results until no call is outstanding or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	for c.pending > 0 {
		select {
		case r := <-c.results:
			c.Resolve(r)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// diagnose records a failed call for the operator.
func (c *Controller) diagnose(r Result) {
	fields := []zap.Field{
		zap.Uint64("seq", r.Seq),
		zap.Stringer("kind", picture.Kind(r.Err)),
		zap.Duration("elapsed", r.Elapsed),
		zap.Error(r.Err),
	}
	var ae *picture.ApplicationError
	if errors.As(r.Err, &ae) {
		fields = append(fields, zap.String("message", ae.Message))
	}
	c.log.Warn("picture request failed", fields...)
}
