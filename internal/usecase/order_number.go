package usecase

import (
	"encoding/base32"

	"github.com/google/uuid"
)

const orderNumberPrefix = "ORD-"

var crockford = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// NewOrderNumber returns "ORD-" followed by the 26-char Crockford base32 form
// of a UUIDv7. Numbers sort by creation time and are monotonic within a process.
func NewOrderNumber() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return orderNumberPrefix + crockford.EncodeToString(id[:]), nil
}
