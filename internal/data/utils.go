package data

import (
	"reflect"
	"strings"
)

// getDBColumns returns the db tags of a struct in field order, skipping untagged and "-" fields.
func getDBColumns(model any) []string {
	modelType := reflect.TypeOf(model)
	dbColumns := make([]string, 0, modelType.NumField())
	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)
		dbTag := field.Tag.Get("db")

		if dbTag != "" && dbTag != "-" {
			dbColumns = append(dbColumns, dbTag)
		}
	}
	return dbColumns
}

// prepareColumns renders the column list of a model for a SELECT clause, optionally prefixed with a table alias.
func prepareColumns(model any, prefix string) string {
	columns := getDBColumns(model)
	if prefix != "" {
		for i, c := range columns {
			columns[i] = prefix + "." + c
		}
	}
	return strings.Join(columns, ", ")
}

// namedValues renders the ":column" placeholders matching getDBColumns for an INSERT.
func namedValues(model any) string {
	columns := getDBColumns(model)
	for i, c := range columns {
		columns[i] = ":" + c
	}
	return strings.Join(columns, ", ")
}
