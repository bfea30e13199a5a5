// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paropt

import "errors"

var (
	// ErrSingularDmat is returned when the small dense coupling matrix
	// built from the constraint rows cannot be factored.
	ErrSingularDmat = errors.New("paropt: constraint coupling matrix is singular")
	// ErrSingularCapacitance is returned when the Woodbury capacitance
	// matrix cannot be factored.
	ErrSingularCapacitance = errors.New("paropt: quasi-Newton capacitance matrix is singular")
	// ErrLineSearchExhausted is returned when the merit-function line
	// search fails to find an acceptable step within the configured
	// iteration budget.
	ErrLineSearchExhausted = errors.New("paropt: line search exhausted its iteration budget")
	// ErrOracleNonFinite is returned when the oracle reports a NaN or
	// infinite objective at the starting point. Constraint values and
	// gradient entries are not checked.
	ErrOracleNonFinite = errors.New("paropt: oracle returned a non-finite value")
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("paropt: invalid configuration")
)

func errMissingHook(name string) error {
	return &missingHookError{name: name}
}

type missingHookError struct{ name string }

func (e *missingHookError) Error() string {
	return "paropt: oracle is missing required hook " + e.name
}
