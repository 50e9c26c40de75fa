package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// ErrLayoutMismatch is returned when memory reserved for one layout is asked to hold a value of another
var ErrLayoutMismatch error = errors.New("layouts are not compatible")
