package snomed

import "errors"

// ErrInvalidCheckDigit is wrapped by ParseAndValidate when an identifier's
// Verhoeff check digit is wrong.
var ErrInvalidCheckDigit = errors.New("invalid Verhoeff check digit")

// ErrUnknownPartition names the condition of an identifier whose partition
// code does not designate a recognized component kind. No function in this
// package returns it; Identifier.Kind reports such identifiers as KindUnknown.
var ErrUnknownPartition = errors.New("unrecognized partition identifier")
