package proxy

import (
	"fmt"
	"math/rand"
)

type Mode string

const (
	ModeNone     Mode = "none"
	ModeSingle   Mode = "single"
	ModeRotation Mode = "rotation"
)

type RotationMode string

const (
	RotationSequential RotationMode = "sequential"
	RotationRandom     RotationMode = "random"
)

// Policy is the read-only proxy configuration shared by all workers.
type Policy struct {
	Mode     Mode
	Single   Spec
	Pool     []Spec
	Interval int
	Rotation RotationMode
}

func (p Policy) Validate() error {
	switch p.Mode {
	case ModeNone:
	case ModeSingle:
		if p.Single.Host == "" {
			return fmt.Errorf("single proxy mode requires a proxy")
		}
	case ModeRotation:
		if len(p.Pool) == 0 {
			return ErrEmptyPool
		}
		if p.Interval < 1 {
			return fmt.Errorf("rotation interval must be at least 1, got %d", p.Interval)
		}
		if p.Rotation != RotationSequential && p.Rotation != RotationRandom {
			return fmt.Errorf("unknown rotation mode %q", p.Rotation)
		}
	default:
		return fmt.Errorf("unknown proxy mode %q", p.Mode)
	}
	return nil
}

// Assigner picks the proxy for a worker's next session. It holds no per-worker
// state: the caller passes its own completed-task counter.
type Assigner struct {
	policy Policy
	intn   func(n int) int
}

type AssignerOption func(*Assigner)

// WithRandomSource replaces the uniform index source used by random rotation.
func WithRandomSource(intn func(n int) int) AssignerOption {
	return func(a *Assigner) { a.intn = intn }
}

func NewAssigner(policy Policy, opts ...AssignerOption) (*Assigner, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	a := &Assigner{
		policy: policy,
		intn:   rand.Intn,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assign returns the proxy for the next session of workerID, or nil for a
// direct connection.
//
// Random rotation draws a fresh index on every call and ignores the interval;
// it is only called when a session is (re)created.
func (a *Assigner) Assign(workerID, productsParsed int) *Spec {
	switch a.policy.Mode {
	case ModeSingle:
		spec := a.policy.Single
		return &spec
	case ModeRotation:
		idx := a.Index(productsParsed)
		spec := a.policy.Pool[idx]
		return &spec
	}
	return nil
}

// Index is the pool position used for a worker that has completed
// productsParsed tasks.
func (a *Assigner) Index(productsParsed int) int {
	size := len(a.policy.Pool)
	if size == 0 {
		return 0
	}
	if a.policy.Rotation == RotationRandom {
		return a.intn(size)
	}
	if productsParsed < 0 {
		productsParsed = 0
	}
	return (productsParsed / a.policy.Interval) % size
}

func (a *Assigner) Policy() Policy {
	return a.policy
}
