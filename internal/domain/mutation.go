package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// MutationOp names a read-modify-write transform.
type MutationOp string

const (
	// MutationSet replaces the value with the operand.
	MutationSet MutationOp = "set"
	// MutationAppend concatenates the operand to the value.
	MutationAppend MutationOp = "append"
	// MutationIncr adds the integer operand to the integer value. A missing value counts as 0.
	MutationIncr MutationOp = "incr"
)

// ErrInvalidMutation reports an unknown operation or an operand/value the operation
// cannot work with.
var ErrInvalidMutation = errors.New("invalid mutation")

// Mutation is a transform applied to a guarded value under the lease.
type Mutation struct {
	Op      MutationOp
	Operand string
}

// Validate checks the mutation without looking at any stored value.
func (m Mutation) Validate() error {
	switch m.Op {
	case MutationSet, MutationAppend:
		return nil
	case MutationIncr:
		if _, err := m.delta(); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidMutation, m.Op)
	}
}

// Apply computes the next value from the current one.
func (m Mutation) Apply(current string, found bool) (string, error) {
	switch m.Op {
	case MutationSet:
		return m.Operand, nil
	case MutationAppend:
		return current + m.Operand, nil
	case MutationIncr:
		delta, err := m.delta()
		if err != nil {
			return "", err
		}
		var n int64
		if found && current != "" {
			n, err = strconv.ParseInt(current, 10, 64)
			if err != nil {
				return "", fmt.Errorf("%w: stored value %q is not an integer", ErrInvalidMutation, current)
			}
		}
		return strconv.FormatInt(n+delta, 10), nil
	default:
		return "", fmt.Errorf("%w: unknown op %q", ErrInvalidMutation, m.Op)
	}
}

// delta is the incr operand; empty means 1.
func (m Mutation) delta() (int64, error) {
	if m.Operand == "" {
		return 1, nil
	}
	d, err := strconv.ParseInt(m.Operand, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: incr operand %q is not an integer", ErrInvalidMutation, m.Operand)
	}
	return d, nil
}
