package calibration

import (
	"fmt"
)

// State is the persistable form of a Calibrator
type State struct {
	Method   Method    `msgpack:"method"`
	Isotonic *Isotonic `msgpack:"isotonic,omitempty"`
	Sigmoid  *Sigmoid  `msgpack:"sigmoid,omitempty"`
}

// Pack converts a calibrator into its persistable state
func Pack(c Calibrator) (State, error) {
	switch v := c.(type) {
	case nil:
		return State{Method: MethodIdentity}, nil
	case Identity, *Identity:
		return State{Method: MethodIdentity}, nil
	case *Isotonic:
		return State{Method: MethodIsotonic, Isotonic: v}, nil
	case *Sigmoid:
		return State{Method: MethodSigmoid, Sigmoid: v}, nil
	default:
		return State{}, fmt.Errorf("cannot persist calibrator of type %T", c)
	}
}

// Calibrator restores the calibrator held by the state
func (s State) Calibrator() (Calibrator, error) {
	switch s.Method {
	case MethodIdentity, "":
		return Identity{}, nil
	case MethodIsotonic:
		if s.Isotonic == nil || len(s.Isotonic.X) != len(s.Isotonic.Y) {
			return nil, fmt.Errorf("isotonic calibrator state is malformed")
		}
		return s.Isotonic, nil
	case MethodSigmoid:
		if s.Sigmoid == nil {
			return nil, fmt.Errorf("sigmoid calibrator state is missing")
		}
		return s.Sigmoid, nil
	default:
		return nil, fmt.Errorf("unknown calibration method %q", s.Method)
	}
}
