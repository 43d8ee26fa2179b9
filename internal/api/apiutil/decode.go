package apiutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const (
	MaxJSONBody      = 1 << 20
	MaxMultipartBody = 10 << 20
)

// Decode reads a JSON, urlencoded or multipart body into dst and validates it.
func Decode(r *http.Request, dst any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err = r.ParseForm(); err == nil {
			err = decodeValues(r.PostForm, dst)
		}
	case "multipart/form-data":
		if err = r.ParseMultipartForm(MaxMultipartBody); err == nil {
			err = decodeValues(url.Values(r.MultipartForm.Value), dst)
		}
	default:
		err = DecodeJSON(r, dst)
	}
	if err != nil {
		return classifyDecodeError(err)
	}
	return Validate(dst)
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func classifyDecodeError(err error) error {
	var maxBytesErr *http.MaxBytesError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var fieldErr FieldError
	switch {
	case errors.As(err, &maxBytesErr):
		return HandlerError{Status: http.StatusRequestEntityTooLarge, Message: "Request body too large", Err: err}
	case errors.Is(err, io.EOF):
		return HandlerError{Status: http.StatusBadRequest, Message: "Request body is required", Err: err}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return HandlerError{Status: http.StatusBadRequest, Message: "Malformed JSON body", Err: err}
	case errors.As(err, &typeErr):
		return HandlerError{Status: http.StatusBadRequest, Message: fmt.Sprintf("%s has the wrong type", typeErr.Field), Err: err}
	case errors.As(err, &fieldErr):
		return HandlerError{Status: http.StatusBadRequest, Message: fieldErr.Error(), Err: err}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		name := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return HandlerError{Status: http.StatusBadRequest, Message: "Unknown field " + name, Err: err}
	}
	return HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
}

var timeType = reflect.TypeOf(time.Time{})

// decodeValues fills a flat struct from form values, matching keys
// against json tags. Unknown keys are rejected like unknown JSON fields.
func decodeValues(values url.Values, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode target must be a pointer to a struct")
	}
	rv = rv.Elem()
	rt := rv.Type()

	fields := make(map[string]reflect.Value, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := strings.Split(sf.Tag.Get("json"), ",")[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		fields[name] = rv.Field(i)
	}

	for key, raw := range values {
		field, ok := fields[strings.TrimSuffix(key, "[]")]
		if !ok {
			return FieldError{Field: key, Reason: "is not a known field"}
		}
		if err := setField(field, raw); err != nil {
			return FieldError{Field: key, Reason: err.Error()}
		}
	}
	return nil
}

func setField(field reflect.Value, raw []string) error {
	if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String {
		out := reflect.MakeSlice(field.Type(), 0, len(raw))
		for _, v := range raw {
			out = reflect.Append(out, reflect.ValueOf(v).Convert(field.Type().Elem()))
		}
		field.Set(out)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	value := raw[len(raw)-1]

	if field.Kind() == reflect.Pointer {
		if value == "" {
			return nil
		}
		ptr := reflect.New(field.Type().Elem())
		if err := setScalar(ptr.Elem(), value); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}
	return setScalar(field, value)
}

func setScalar(field reflect.Value, value string) error {
	if field.Type() == timeType {
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("must be an RFC3339 timestamp")
		}
		field.Set(reflect.ValueOf(t))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if value == "on" {
			value = "true"
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("must be true or false")
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("must be an integer")
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("must be a number")
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("cannot be sent as a form value")
	}
	return nil
}
