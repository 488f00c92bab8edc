package checkout

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/models"
)

// Validation codes.
const (
	CodeRequired    = "required"
	CodeInvalid     = "invalid_format"
	CodeUnconfirmed = "unconfirmed"
	CodeEmpty       = "empty"
)

// MaxInstallments is the longest payment split offered.
const MaxInstallments = 12

var (
	validate = validator.New()

	cardNumberPattern = regexp.MustCompile(`^\d{4} \d{4} \d{4} \d{4}$`)
	expirationPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvcPattern        = regexp.MustCompile(`^\d{3}$`)
)

// Contact is the customer block of a checkout request.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Card is the payment block of a checkout request. CVC is checked and then
// discarded.
type Card struct {
	CardholderName string `json:"cardholderName"`
	Number         string `json:"cardNumber"`
	Expiration     string `json:"expiration"`
	CVC            string `json:"cvc"`
}

// ValidateContact checks name, phone and email in that order.
func ValidateContact(c Contact) error {
	if blank(c.Name) {
		return errs.Invalid("name", CodeRequired, "name is required")
	}
	if blank(c.Phone) {
		return errs.Invalid("phone", CodeRequired, "phone is required")
	}
	if validate.Var(c.Phone, "number,min=9") != nil {
		return errs.Invalid("phone", CodeInvalid, "phone must contain at least 9 digits and nothing else")
	}
	if blank(c.Email) {
		return errs.Invalid("email", CodeRequired, "email is required")
	}
	if validate.Var(c.Email, "email") != nil {
		return errs.Invalid("email", CodeInvalid, "email is not valid")
	}
	return nil
}

// ValidateShipping checks street, house, city and delivery in that order.
func ValidateShipping(s models.Shipping) error {
	for _, f := range []struct{ field, value string }{
		{"street", s.Street},
		{"house", s.House},
		{"city", s.City},
	} {
		if blank(f.value) {
			return errs.Invalid(f.field, CodeRequired, f.field+" is required")
		}
	}
	if blank(s.Delivery) {
		return errs.Invalid("delivery", CodeRequired, "choose a delivery option")
	}
	if s.Delivery != models.DeliveryStandard && s.Delivery != models.DeliveryExpress {
		return errs.Invalid("delivery", CodeInvalid, "unknown delivery option "+s.Delivery)
	}
	return nil
}

// ValidateCard checks the payment block.
func ValidateCard(c Card) error {
	if blank(c.CardholderName) {
		return errs.Invalid("cardholderName", CodeRequired, "cardholder name is required")
	}
	if blank(c.Number) {
		return errs.Invalid("cardNumber", CodeRequired, "card number is required")
	}
	if !cardNumberPattern.MatchString(c.Number) {
		return errs.Invalid("cardNumber", CodeInvalid, "card number must be 16 digits in groups of 4")
	}
	if blank(c.Expiration) {
		return errs.Invalid("expiration", CodeRequired, "expiration date is required")
	}
	if !expirationPattern.MatchString(c.Expiration) {
		return errs.Invalid("expiration", CodeInvalid, "expiration date must be MM/YY")
	}
	if blank(c.CVC) {
		return errs.Invalid("cvc", CodeRequired, "CVC is required")
	}
	if !cvcPattern.MatchString(c.CVC) {
		return errs.Invalid("cvc", CodeInvalid, "CVC must be 3 digits")
	}
	return nil
}

// Validate runs every checkout check in order and returns the first failure.
func Validate(req Request) error {
	if len(req.Lines) == 0 {
		return errs.Invalid("cart", CodeEmpty, "cart is empty")
	}
	for _, l := range req.Lines {
		if l.Quantity < 1 {
			return errs.Invalid("quantity", "below_minimum", "quantity must be at least 1")
		}
	}
	if err := ValidateContact(req.Contact); err != nil {
		return err
	}
	if err := ValidateShipping(req.Shipping); err != nil {
		return err
	}
	if err := ValidateCard(req.Card); err != nil {
		return err
	}
	if !req.Confirmed {
		return errs.Invalid("confirmed", CodeUnconfirmed, "please confirm the order")
	}
	if req.Installments < 0 || req.Installments > MaxInstallments {
		return errs.Invalid("installments", CodeInvalid, fmt.Sprintf("installments must be between 0 and %d", MaxInstallments))
	}
	return nil
}

// MaskCard keeps only the last four digits of a validated card number.
func MaskCard(number string) string {
	digits := strings.ReplaceAll(number, " ", "")
	if len(digits) < 4 {
		return ""
	}
	return "**** **** **** " + digits[len(digits)-4:]
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
