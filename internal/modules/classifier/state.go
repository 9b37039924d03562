package classifier

import (
	"fmt"
)

// State is the persistable form of a Model: a tagged union keyed by Variant
type State struct {
	Variant  Variant        `msgpack:"variant"`
	Logistic *LogisticModel `msgpack:"logistic,omitempty"`
	Forest   *ForestModel   `msgpack:"forest,omitempty"`
	Boosting *BoostingModel `msgpack:"boosting,omitempty"`
}

// Pack converts a fitted model into its persistable state
func Pack(m Model) (State, error) {
	switch v := m.(type) {
	case *LogisticModel:
		return State{Variant: VariantLogisticRegression, Logistic: v}, nil
	case *ForestModel:
		return State{Variant: VariantRandomForest, Forest: v}, nil
	case *BoostingModel:
		return State{Variant: VariantGradientBoosting, Boosting: v}, nil
	default:
		return State{}, fmt.Errorf("cannot persist model of type %T", m)
	}
}

// Model restores the fitted model held by the state
func (s State) Model() (Model, error) {
	switch s.Variant {
	case VariantLogisticRegression:
		if s.Logistic == nil {
			return nil, fmt.Errorf("state for %s carries no parameters", s.Variant)
		}
		return s.Logistic, nil
	case VariantRandomForest:
		if s.Forest == nil {
			return nil, fmt.Errorf("state for %s carries no parameters", s.Variant)
		}
		return s.Forest, nil
	case VariantGradientBoosting:
		if s.Boosting == nil {
			return nil, fmt.Errorf("state for %s carries no parameters", s.Variant)
		}
		return s.Boosting, nil
	default:
		return nil, fmt.Errorf("unknown classifier variant %q", s.Variant)
	}
}
