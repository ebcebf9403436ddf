package payments

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const StatusConfirmed = "confirmed"

// Notification is the validated, immutable form of a gateway IPN. It is only
// produced by ParseNotification.
type Notification struct {
	status           string
	priceAmount      decimal.Decimal
	paymentAmount    decimal.Decimal
	payAddress       string
	orderID          string
	paymentID        string
	paymentCurrency  string
	orderDescription string
	ipnType          string
}

func (n Notification) Status() string { return n.status }
func (n Notification) PriceAmount() decimal.Decimal { return n.priceAmount }
func (n Notification) PaymentAmount() decimal.Decimal { return n.paymentAmount }
func (n Notification) PayAddress() string { return n.payAddress }
func (n Notification) OrderID() string { return n.orderID }
func (n Notification) PaymentID() string { return n.paymentID }
func (n Notification) PaymentCurrency() string { return n.paymentCurrency }
func (n Notification) IPNType() string { return n.ipnType }

// SubjectID is the order description, which carries the payer's identifier.
func (n Notification) SubjectID() string { return n.orderDescription }

// IsConfirmed reports whether this notification should grant access.
func (n Notification) IsConfirmed() bool { return n.status == StatusConfirmed }

// identifier accepts both JSON strings and numbers; the gateway sends
// payment ids as numbers while order ids are merchant-provided strings.
type identifier string

func (id *identifier) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] == 'n' {
		return errors.New("identifier must be a string or number")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = identifier(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("identifier must be a string or number")
	}
	*id = identifier(n.String())
	return nil
}

// notificationPayload mirrors the wire format. Pointers distinguish a missing
// field from a zero value.
type notificationPayload struct {
	PaymentStatus    *string          `json:"payment_status" validate:"required,max=64"`
	PriceAmount      *decimal.Decimal `json:"price_amount" validate:"required"`
	PayAddress       *string          `json:"pay_address" validate:"required"`
	OrderID          *identifier      `json:"order_id" validate:"required"`
	PaymentID        *identifier      `json:"payment_id" validate:"required"`
	IPNType          *string          `json:"ipn_type" validate:"required"`
	PaymentAmount    *decimal.Decimal `json:"payment_amount" validate:"required"`
	PaymentCurrency  *string          `json:"payment_currency" validate:"required,max=16"`
	OrderDescription *string          `json:"order_description" validate:"required,max=320"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func payloadValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ParseNotification decodes and validates a raw IPN body. Any missing or
// wrong-typed field yields a *ValidationError.
func ParseNotification(body []byte) (Notification, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Notification{}, &ValidationError{Malformed: true, Reason: "empty body"}
	}

	var p notificationPayload
	if err := json.Unmarshal(body, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Notification{}, &ValidationError{
				Fields: []string{typeErr.Field},
				Reason: fmt.Sprintf("field %q has wrong type", typeErr.Field),
			}
		}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return Notification{}, &ValidationError{Malformed: true, Reason: "invalid JSON"}
		}
		// identifier and decimal decoders report plain errors
		return Notification{}, &ValidationError{Reason: err.Error()}
	}

	if err := payloadValidator().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return Notification{}, &ValidationError{
				Fields: fields,
				Reason: "missing or invalid fields: " + strings.Join(fields, ", "),
			}
		}
		return Notification{}, &ValidationError{Reason: err.Error()}
	}

	n := Notification{
		status:           strings.TrimSpace(*p.PaymentStatus),
		priceAmount:      *p.PriceAmount,
		paymentAmount:    *p.PaymentAmount,
		payAddress:       *p.PayAddress,
		orderID:          string(*p.OrderID),
		paymentID:        strings.TrimSpace(string(*p.PaymentID)),
		paymentCurrency:  strings.TrimSpace(*p.PaymentCurrency),
		orderDescription: strings.TrimSpace(*p.OrderDescription),
		ipnType:          *p.IPNType,
	}

	var invalid []string
	if n.status == "" {
		invalid = append(invalid, "payment_status")
	}
	if n.priceAmount.IsNegative() {
		invalid = append(invalid, "price_amount")
	}
	if n.paymentAmount.IsNegative() {
		invalid = append(invalid, "payment_amount")
	}
	if n.paymentID == "" {
		invalid = append(invalid, "payment_id")
	}
	if n.orderDescription == "" {
		invalid = append(invalid, "order_description")
	}
	if len(invalid) > 0 {
		return Notification{}, &ValidationError{
			Fields: invalid,
			Reason: "missing or invalid fields: " + strings.Join(invalid, ", "),
		}
	}
	return n, nil
}
