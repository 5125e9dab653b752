package repositories_gorm

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm"

	"gitlab.com/alternet/naming-service/db/repositories"
)

// handleDBError translates GORM database errors into repository errors.
func handleDBError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repositories.NotFoundError
	case errors.Is(err, gorm.ErrInvalidData), errors.Is(err, gorm.ErrInvalidField), errors.Is(err, gorm.ErrInvalidValue):
		return repositories.InvalidDataError
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return repositories.ConflictError
	default:
		zlog.Sugar().Errorf("database error: %v", err)
		return repositories.DatabaseError
	}
}

// applyConditions applies conditions, sorting, limiting, and offsetting to a GORM database query.
// Conditions name struct fields; the naming strategy maps them to columns.
func applyConditions[T any](db *gorm.DB, query repositories.Query[T]) *gorm.DB {
	tableName := db.NamingStrategy.TableName(reflect.TypeOf(*new(T)).Name())

	for _, condition := range query.Conditions {
		columnName := db.NamingStrategy.ColumnName(tableName, condition.Field)
		placeholder := "?"
		if condition.Operator == "IN" {
			placeholder = "(?)"
		}
		db = db.Where(
			fmt.Sprintf("%s %s %s", columnName, condition.Operator, placeholder),
			condition.Value,
		)
	}

	// Apply conditions based on non-zero values in the query instance.
	if !isEmptyValue(query.Instance) {
		exampleType := reflect.TypeOf(query.Instance)
		exampleValue := reflect.ValueOf(query.Instance)
		for i := 0; i < exampleType.NumField(); i++ {
			if exampleType.Field(i).Anonymous {
				continue
			}
			fieldName := exampleType.Field(i).Name
			fieldValue := exampleValue.Field(i).Interface()
			if !isEmptyValue(fieldValue) {
				columnName := db.NamingStrategy.ColumnName(tableName, fieldName)
				db = db.Where(fmt.Sprintf("%s = ?", columnName), fieldValue)
			}
		}
	}

	if query.SortBy != "" {
		field, desc := strings.CutPrefix(query.SortBy, "-")
		order := db.NamingStrategy.ColumnName(tableName, field)
		if desc {
			order += " DESC"
		}
		db = db.Order(order)
	}

	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}

	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}

	return db
}

// isEmptyValue checks if value is nil or the zero value of its type,
// looking through a pointer.
func isEmptyValue(value interface{}) bool {
	if value == nil {
		return true
	}

	val := reflect.ValueOf(value)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return true
		}
		val = val.Elem()
	}

	return val.IsZero()
}
