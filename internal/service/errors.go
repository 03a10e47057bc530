package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownAccount  = errors.New("unknown account")
	ErrTradeNotFound   = errors.New("trade not found")
	ErrRuleNotFound    = errors.New("risk rule not found")
	ErrTradingDisabled = errors.New("trading is disabled for this account")
	ErrAccountDisabled = errors.New("account is disabled")
	ErrForbidden       = errors.New("not allowed for this caller")
)

// ValidationError lists every problem found in a request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

type validator struct {
	problems []string
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) check(ok bool, format string, args ...any) {
	if !ok {
		v.add(format, args...)
	}
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}
