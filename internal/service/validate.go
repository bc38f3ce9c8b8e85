package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"familytree-backend/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodePayload parses and validates raw against the kind's payload schema.
func decodePayload(kind domain.RequestKind, raw json.RawMessage) (domain.Payload, error) {
	spec, ok := kind.Spec()
	if !ok {
		return nil, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown request kind %q", kind)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &domain.ValidationError{Field: "payload", Reason: "is required"}
	}

	p := spec.NewPayload()
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, &domain.ValidationError{Field: "payload", Reason: err.Error()}
	}
	if err := validate.Struct(p); err != nil {
		return nil, toValidationError(err)
	}
	return p, nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &domain.ValidationError{Field: fe.Field(), Reason: reason}
	}
	return &domain.ValidationError{Reason: err.Error()}
}
