package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/artpar/trustmeter/domain/wei"
	"github.com/artpar/trustmeter/pkg/jsonapi"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// newValidator returns a validator with the "wei" rule registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("wei", func(fl validator.FieldLevel) bool {
		return wei.IsValid(fl.Field().String())
	})
	return v
}

// weiAmount accepts a wei amount written either as a JSON string or a bare integer.
type weiAmount string

func (a *weiAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = weiAmount(s)
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("wei amount must be an integer: %w", err)
	}
	*a = weiAmount(n.String())
	return nil
}

// decodeBody reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// validationErrors converts validator output into JSON:API errors.
func validationErrors(err error) []jsonapi.Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []jsonapi.Error{jsonapi.ErrBadRequest(err.Error())}
	}
	out := make([]jsonapi.Error, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, jsonapi.ErrValidation(fe.Field(), validationMessage(fe)))
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "eth_addr":
		return fe.Field() + " must be a 0x-prefixed 20-byte hex address"
	case "wei":
		return fe.Field() + " must be a non-negative integer amount of wei"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
