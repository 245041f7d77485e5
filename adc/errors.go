package adc

import "fmt"

// InitError reports that the bus or the driver could not be set up.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("adc init %s: %v", e.Op, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// TransferError reports that a bus exchange did not complete.
type TransferError struct {
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("adc transfer: %v", e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
