// Package repositories defines storage-agnostic repositories for the rows
// in models.
package repositories

import (
	"context"
)

// QueryCondition is a struct representing a query condition.
type QueryCondition struct {
	Field    string      // Field specifies the struct field to which the condition applies.
	Operator string      // Operator defines the comparison operator (e.g., "=", ">", "<").
	Value    interface{} // Value is the expected value for the given field.
}

type ModelType interface{}

// Query is a struct that wraps both the instance of type T and additional query parameters.
type Query[T any] struct {
	Instance   T                // Instance is an optional object of type T used to build conditions from its fields.
	Conditions []QueryCondition // Conditions represent the conditions applied to the query.
	SortBy     string           // SortBy names a field; a leading "-" sorts descending.
	Limit      int              // Limit specifies the maximum number of results to return.
	Offset     int              // Offset specifies the number of results to skip before starting to return data.
}

// GenericRepository is an interface defining basic CRUD operations and standard querying methods.
type GenericRepository[T ModelType] interface {
	Create(ctx context.Context, data T) (T, error)
	Get(ctx context.Context, id string) (T, error)
	Update(ctx context.Context, id string, data T) (T, error)
	Delete(ctx context.Context, id string) error
	// Find retrieves a single record based on a query.
	Find(ctx context.Context, query Query[T]) (T, error)
	// FindAll retrieves multiple records based on a query.
	FindAll(ctx context.Context, query Query[T]) ([]T, error)
	// DeleteAll removes every record matching the query and reports how many.
	DeleteAll(ctx context.Context, query Query[T]) (int64, error)
	// GetQuery returns an empty query instance for the repository's type.
	GetQuery() Query[T]
}

// EQ creates a QueryCondition for equality comparison.
func EQ(field string, value interface{}) QueryCondition {
	return QueryCondition{Field: field, Operator: "=", Value: value}
}

// GT creates a QueryCondition for greater-than comparison.
func GT(field string, value interface{}) QueryCondition {
	return QueryCondition{Field: field, Operator: ">", Value: value}
}

// LTE creates a QueryCondition for less-than or equal comparison.
func LTE(field string, value interface{}) QueryCondition {
	return QueryCondition{Field: field, Operator: "<=", Value: value}
}

// IN creates a QueryCondition for an "IN" comparison.
func IN(field string, values []interface{}) QueryCondition {
	return QueryCondition{Field: field, Operator: "IN", Value: values}
}
