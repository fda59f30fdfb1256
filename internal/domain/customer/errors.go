package customer

import "errors"

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrEmailExists      = errors.New("email already registered")
	ErrAdminRequired    = errors.New("admin privilege required")
)
