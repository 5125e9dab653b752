package repositories

import (
	"errors"
)

// InvalidDataError represents an error indicating that the provided data is invalid.
var InvalidDataError = errors.New("invalid data given")

// NotFoundError represents an error indicating that the requested record was not found.
var NotFoundError = errors.New("record not found")

// ConflictError is returned when a unique field is already taken.
var ConflictError = errors.New("record already exists")

// DatabaseError represents a general error related to database operations.
var DatabaseError = errors.New("database error")
