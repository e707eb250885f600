package errors

import (
	"fmt"
)

var (
	ErrNotFound          = fmt.Errorf("not found")
	ErrValidation        = fmt.Errorf("validation failed")
	ErrReferential       = fmt.Errorf("referential integrity violation")
	ErrDuplicateContract = fmt.Errorf("duplicate contract number for customer")
)
