package validators

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/starkescrow/starkescrow/internal/utils"
)

// TokenDecimals is the precision accepted by the token_amount tag.
const TokenDecimals = 18

func NewValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("felt_address", feltAddressValidation)
	_ = validate.RegisterValidation("felt", feltValidation)
	_ = validate.RegisterValidation("short_string", shortStringValidation)
	_ = validate.RegisterValidation("token_amount", tokenAmountValidation)
	validate.RegisterAlias("not_empty", "required")
	return validate
}

func feltAddressValidation(fl validator.FieldLevel) bool {
	return utils.IsFeltAddress(fl.Field().String())
}

func feltValidation(fl validator.FieldLevel) bool {
	_, err := utils.ParseFelt(fl.Field().String())
	return err == nil
}

func shortStringValidation(fl validator.FieldLevel) bool {
	_, err := utils.EncodeShortString(fl.Field().String())
	return err == nil
}

func tokenAmountValidation(fl validator.FieldLevel) bool {
	_, err := utils.ParsePositiveUnits(fl.Field().String(), TokenDecimals)
	return err == nil
}

func ParseValidationError(errors validator.ValidationErrors) map[string]interface{} {
	fieldErrors := make(map[string]interface{})
	for _, err := range errors {
		fieldErrors[getFieldName(err)] = msgForFieldError(err)
	}
	return fieldErrors
}

// msgForFieldError gets the message for the given validation error (tag).
func msgForFieldError(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "This field is required"
	case "not_empty":
		return "This field cannot be empty"
	case "felt_address":
		return "Invalid Starknet address"
	case "felt":
		return "Invalid felt value"
	case "short_string":
		return fmt.Sprintf("Must be ASCII and at most %d characters", utils.MaxShortStringLength)
	case "token_amount":
		return "Amount must be greater than 0"
	case "oneof":
		params := strings.Join(strings.Split(fieldError.Param(), " "), ", ")
		return fmt.Sprintf("Unexpected value %q. Expected one of the following values: %s", fieldError.Value(), params)
	case "min":
		if fieldError.Kind() == reflect.String {
			return fmt.Sprintf("Should have at least %s characters", fieldError.Param())
		}
		return fmt.Sprintf("Should be at least %s", fieldError.Param())
	case "max":
		if fieldError.Kind() == reflect.String {
			return fmt.Sprintf("Too long (max %s chars)", fieldError.Param())
		}
		return fmt.Sprintf("Should be at most %s", fieldError.Param())
	case "gt":
		if fieldError.Kind() == reflect.Slice || fieldError.Kind() == reflect.Array {
			return "Should have at least 1 element"
		}
		return fmt.Sprintf("Should be greater than %s", fieldError.Param())
	case "gte":
		return fmt.Sprintf("Should be greater than or equal %s", fieldError.Param())
	default:
		return "Invalid value"
	}
}

func getFieldName(fieldError validator.FieldError) string {
	// Ex.: structName.FieldName, structName.nestedStructName.nestedStructFieldName, structName.nestedStructName.nestedStructName....
	namespace := strings.Split(fieldError.StructNamespace(), ".")
	length := len(namespace)
	if length == 2 {
		return lcFirst(namespace[1])
	}

	if length > 2 {
		return fmt.Sprintf("%s.%s", lcFirst(namespace[length-2]), lcFirst(namespace[length-1]))
	}

	return lcFirst(namespace[0])
}

// lcFirst lowers the case of the first letter of the given string.
//
//	Example: Address -> address
func lcFirst(str string) string {
	for index, letter := range str {
		return string(unicode.ToLower(letter)) + str[index+1:]
	}
	return ""
}
