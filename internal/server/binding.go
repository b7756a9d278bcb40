package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxBodyBytes = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bindStrictJSON decodes the request body into obj, rejecting unknown
// fields, wrong types and trailing data, then runs the validate tags.
// Every failure comes back as an InvalidArgument status.
func bindStrictJSON(c *gin.Context, v *validator.Validate, obj any) error {
	if c.Request.Body == nil {
		return status.Error(codes.InvalidArgument, "request body must be a JSON object")
	}
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return status.Errorf(codes.InvalidArgument, "request body exceeds %d bytes", maxBodyBytes)
		}
		return status.Error(codes.InvalidArgument, "unable to read request body")
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return status.Error(codes.InvalidArgument, "request body must be a JSON object")
	}

	if err := checkExactKeys(trimmed, obj); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(obj); err != nil {
		return status.Error(codes.InvalidArgument, describeDecodeError(err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return status.Error(codes.InvalidArgument, "request body must contain a single JSON object")
	}

	if err := v.Struct(obj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return status.Error(codes.InvalidArgument, describeValidationErrors(verrs))
		}
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

// checkExactKeys rejects object keys that do not match a json tag of obj
// byte for byte. encoding/json alone would map "Title" onto "title".
// Bodies that are not a single object are left to the typed decode.
func checkExactKeys(body []byte, obj any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil
	}
	allowed := jsonFieldNames(reflect.TypeOf(obj))
	var unknown []string
	for key := range fields {
		if _, ok := allowed[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return status.Errorf(codes.InvalidArgument, "property %s should not exist", unknown[0])
}

func jsonFieldNames(t reflect.Type) map[string]struct{} {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := strings.SplitN(t.Field(i).Tag.Get("json"), ",", 2)[0]
		if name != "" && name != "-" {
			names[name] = struct{}{}
		}
	}
	return names
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return "request body must be a JSON object"
		}
		return fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type)
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "malformed JSON"
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return fmt.Sprintf("property %s should not exist", strings.Trim(field, `"`))
	}
	return "invalid request body"
}

func describeValidationErrors(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "min":
			msgs = append(msgs, fmt.Sprintf("%s should not be empty", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be shorter than or equal to %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed on the %s rule", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
