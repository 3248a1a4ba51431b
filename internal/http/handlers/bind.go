package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes and validates the body into out. On failure it answers 400
// with details a client can map back onto its form or upload file, and
// returns false.
func BindJSON(ctx *gin.Context, out any) bool {
	if err := ctx.ShouldBindJSON(out); err != nil {
		RespondBadRequest(ctx, "Invalid request body", bindErrorDetails(err, out))
		return false
	}

	return true
}

func bindErrorDetails(err error, out any) gin.H {
	root := structType(out)

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]FieldError, 0, len(validationErrs))
		rows := map[int]struct{}{}

		for _, fe := range validationErrs {
			path := jsonPath(root, fieldPath(root, fe))
			if path == "" {
				path = fe.Field()
			}
			if row, ok := firstIndex(path); ok {
				rows[row] = struct{}{}
			}

			fields = append(fields, FieldError{
				Field:   path,
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: ruleMessage(fe.Tag(), fe.Param(), fe.Kind()),
			})
		}

		details := gin.H{"fields": fields}

		// bulk uploads: which entries to fix
		if len(rows) > 0 {
			invalid := make([]int, 0, len(rows))
			for row := range rows {
				invalid = append(invalid, row)
			}
			sort.Ints(invalid)
			details["invalidEntries"] = invalid
		}

		return details
	}

	if errors.Is(err, io.EOF) {
		return gin.H{"json": "empty_body"}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return gin.H{"json": "invalid_json_syntax", "offset": syntaxErr.Offset}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := jsonPath(root, strings.Split(strings.TrimSpace(typeErr.Field), "."))
		if field == "" {
			field = strings.TrimSpace(typeErr.Field)
		}

		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: "must be " + jsonTypeName(typeErr.Type),
			}},
		}
	}

	return gin.H{"json": "invalid_body"}
}

func structType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}
	return nil
}

// fieldPath splits "BulkCreateRequest.Records[1].Year" into its parts below
// the request type.
func fieldPath(root reflect.Type, fe validator.FieldError) []string {
	ns := fe.StructNamespace()
	if ns == "" {
		ns = fe.Namespace()
	}
	if ns == "" {
		return nil
	}

	parts := strings.Split(ns, ".")
	if root != nil && root.Name() != "" && parts[0] == root.Name() {
		parts = parts[1:]
	}
	return parts
}

// jsonPath maps Go field names to their json tags, keeping slice indexes:
// Records[1].Year becomes records[1].year.
func jsonPath(root reflect.Type, parts []string) string {
	current := root
	out := make([]string, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			continue
		}

		name, index := part, ""
		if i := strings.IndexByte(part, '['); i >= 0 {
			name, index = part[:i], part[i:]
		}

		jsonName := name
		var next reflect.Type

		if current != nil && current.Kind() == reflect.Struct {
			if sf, ok := current.FieldByName(name); ok {
				jsonName = jsonTag(sf)
				next = elemType(sf.Type)
			}
		}

		out = append(out, jsonName+index)
		current = next
	}

	return strings.Join(out, ".")
}

func jsonTag(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}
	return name
}

func elemType(t reflect.Type) reflect.Type {
	for t != nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			t = t.Elem()
		default:
			return t
		}
	}
	return nil
}

// firstIndex reads the entry number from paths like "records[3].year".
func firstIndex(path string) (int, bool) {
	open := strings.IndexByte(path, '[')
	end := strings.IndexByte(path, ']')
	if open < 0 || end <= open+1 {
		return 0, false
	}

	n, err := strconv.Atoi(path[open+1 : end])
	return n, err == nil
}

func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "a different type"
	}

	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "true or false"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "a whole number"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "a list"
	case reflect.Struct, reflect.Map:
		return "an object"
	default:
		return "of type " + t.String()
	}
}

// ruleMessage phrases bounds by what they bound: characters for text, items
// for lists, the value itself for numbers such as year or finalScore.
func ruleMessage(rule, param string, kind reflect.Kind) string {
	unit := ""
	switch kind {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " entries"
	}

	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a full URL including the scheme, e.g. https://example.com"
	case "min", "gte":
		if unit == "" {
			return "must be at least " + param
		}
		return "must have at least " + param + unit
	case "max", "lte":
		if unit == "" {
			return "must be at most " + param
		}
		return "must have at most " + param + unit
	case "len":
		return "must be exactly " + param + unit
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "dive":
		return "every entry must be valid"
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
