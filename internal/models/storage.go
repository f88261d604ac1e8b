package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrHoldingNotFound is returned by storage when a holding id does not exist
// or belongs to another user.
var ErrHoldingNotFound = errors.New("holding not found")

// UnknownCompaniesError is returned by storage when add-batch keys match no
// catalog company. The whole batch is rejected.
type UnknownCompaniesError struct {
	Keys []string
}

func (e *UnknownCompaniesError) Error() string {
	return fmt.Sprintf("unknown companies: %s", strings.Join(e.Keys, ", "))
}
