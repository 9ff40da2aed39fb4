package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lelang/item-service/internal/domain/items"
)

// maxBodyBytes caps the size of an item payload
const maxBodyBytes = 1 << 20

// ItemPayload is the body of create and update requests. Pointer fields let
// the validator tell a missing or null field apart from a zero value.
type ItemPayload struct {
	Name        *string         `json:"nama_barang" validate:"required"`
	Description *string         `json:"deskripsi" validate:"required"`
	StartPrice  *float64        `json:"harga_awal" validate:"required"`
	OwnerID     *int64          `json:"owner_id" validate:"required"`
	ImageURL    *string         `json:"image_url" validate:"omitempty"`
	EndTime     *timestampInput `json:"end_time" validate:"required,iso8601"`
}

// ValidationDetail describes one rejected field. Loc is the path to the
// field, starting with "body" or "path".
type ValidationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// timestampLayouts are the accepted ISO-8601 date-time forms for end_time.
// Fractional seconds are accepted by every layout with a seconds field.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// unixMillisThreshold separates Unix seconds from Unix milliseconds
const unixMillisThreshold = 2e10

// ParseTimestamp parses an ISO-8601 date-time, a date, or a Unix timestamp in
// seconds or milliseconds. Unix timestamps are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	if unix, err := strconv.ParseFloat(value, 64); err == nil && !math.IsInf(unix, 0) && !math.IsNaN(unix) {
		if math.Abs(unix) > unixMillisThreshold {
			unix /= 1000
		}
		sec, frac := math.Modf(unix)
		return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", value)
}

// timestampInput is end_time as sent: a JSON string or a JSON number
type timestampInput string

// UnmarshalJSON keeps numbers in their textual form for ParseTimestamp
func (ts *timestampInput) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*ts = timestampInput(text)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*ts = timestampInput(num)
		return nil
	}
	return &json.UnmarshalTypeError{Value: string(bytes.TrimSpace(data)), Type: reflect.TypeOf("")}
}

// FormatTimestamp renders t the way end_time is returned to clients
func FormatTimestamp(t time.Time) string {
	return t.Format(items.TimestampLayout)
}

// newValidator builds the payload validator with JSON field names in errors
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
		_, err := ParseTimestamp(fl.Field().String())
		return err == nil
	})
	return v
}

// decodeItemPayload reads and validates body. On failure it returns the
// field-level details to report back to the client.
func decodeItemPayload(v *validator.Validate, body io.Reader) (*ItemPayload, []ValidationDetail) {
	var payload ItemPayload
	dec := json.NewDecoder(body)
	if err := dec.Decode(&payload); err != nil {
		return nil, []ValidationDetail{decodeErrorDetail(err)}
	}
	// the body must hold exactly one JSON value
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, []ValidationDetail{{Loc: []string{"body"}, Msg: "invalid JSON body", Type: "value_error.jsondecode"}}
	}

	if err := v.Struct(&payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, []ValidationDetail{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
		}
		details := make([]ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, fieldErrorDetail(fe))
		}
		return nil, details
	}

	return &payload, nil
}

func decodeErrorDetail(err error) ValidationDetail {
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr):
		loc := []string{"body"}
		if typeErr.Field != "" {
			loc = append(loc, typeErr.Field)
		}
		return ValidationDetail{
			Loc:  loc,
			Msg:  fmt.Sprintf("value is not a valid %s", typeErr.Type.Kind()),
			Type: "type_error." + typeErr.Type.Kind().String(),
		}
	case errors.As(err, &maxErr):
		return ValidationDetail{Loc: []string{"body"}, Msg: "request body too large", Type: "value_error.body_size"}
	case errors.Is(err, io.EOF):
		return ValidationDetail{Loc: []string{"body"}, Msg: "field required", Type: "value_error.missing"}
	default:
		return ValidationDetail{Loc: []string{"body"}, Msg: "invalid JSON body", Type: "value_error.jsondecode"}
	}
}

func fieldErrorDetail(fe validator.FieldError) ValidationDetail {
	loc := []string{"body", fe.Field()}
	switch fe.Tag() {
	case "required":
		return ValidationDetail{Loc: loc, Msg: "field required", Type: "value_error.missing"}
	case "iso8601":
		return ValidationDetail{Loc: loc, Msg: "invalid datetime format", Type: "value_error.datetime"}
	default:
		return ValidationDetail{Loc: loc, Msg: fe.Error(), Type: "value_error." + fe.Tag()}
	}
}

// command converts a validated payload into the domain command
func (p *ItemPayload) command() (items.ItemCommand, error) {
	endTime, err := ParseTimestamp(string(*p.EndTime))
	if err != nil {
		return items.ItemCommand{}, err
	}
	return items.ItemCommand{
		Name:        *p.Name,
		Description: *p.Description,
		StartPrice:  *p.StartPrice,
		OwnerID:     *p.OwnerID,
		ImageURL:    p.ImageURL,
		EndTime:     endTime,
	}, nil
}
