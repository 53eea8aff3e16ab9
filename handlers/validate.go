package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"go_trial/foodhub/apperror"
	"go_trial/foodhub/models"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "objectid", func(fl validator.FieldLevel) bool {
		return primitive.IsValidObjectID(fl.Field().String())
	})
	mustRegister(v, "shopcategory", inList(models.ShopCategories))
	mustRegister(v, "menucategory", inList(models.MenuCategories))
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

func inList(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return slices.Contains(allowed, fl.Field().String())
	}
}

// fieldPath drops the root struct from the namespace: items[0].quantity.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "email":
		return "Valid email is required"
	case "shopcategory", "menucategory":
		return "Please select a valid category"
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s", name, fe.Param())
	case "objectid":
		return fmt.Sprintf("Valid %s ID is required", name)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "gte":
		if fe.Param() == "0" {
			return fmt.Sprintf("%s cannot be negative", name)
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "min":
		switch fe.Kind() {
		case reflect.Slice, reflect.Array:
			return fmt.Sprintf("At least %s %s required", fe.Param(), name)
		case reflect.String:
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", name)
}

// validateStruct runs the struct tags and returns a Validation error with
// one entry per failing field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return apperror.Internal("Server Error", err)
	}
	fields := make([]apperror.FieldError, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, apperror.FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return apperror.Validation("Validation failed", fields...)
}

// bind decodes the JSON body into v and validates it.
func bind(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil {
		return err
	}
	return validateStruct(v)
}

// bindOptional is bind for endpoints whose body may be omitted.
func bindOptional(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperror.Validation("Invalid request body")
	}
	return validateStruct(v)
}
