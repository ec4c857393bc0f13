package validators

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/materiel-backend/pkg/errors"
)

// maxBodyBytes caps JSON payloads; materiel bodies are a handful of fields.
const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their json name so details line up with
// the keys clients sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// DecodeJSONBody decodes a required JSON object into dest and runs its
// validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	empty, err := decode(r, dest)
	if err != nil {
		return err
	}
	if empty {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body required")
	}
	return check(dest)
}

// DecodeOptionalJSONBody is DecodeJSONBody for endpoints where the body may
// be omitted; dest keeps its zero value then.
func DecodeOptionalJSONBody(r *http.Request, dest any) error {
	empty, err := decode(r, dest)
	if err != nil || empty {
		return err
	}
	return check(dest)
}

func decode(r *http.Request, dest any) (bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return true, nil
	}
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, malformed(err)
	}
	if decoder.More() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "request body must hold a single JSON object")
	}
	return false, nil
}

func malformed(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body too large")
	}
	wrapped := pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return wrapped.WithDetails(map[string]string{typeErr.Field: "invalid"})
	}
	return wrapped
}

func check(dest any) error {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = reason(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

// reason maps a validator tag onto the short reason codes the services use.
func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "max":
		return "too_long"
	case "min":
		return "too_short"
	}
	return "invalid"
}
