package enums

import "fmt"

// PaymentMethod names the provider a customer paid with.
type PaymentMethod string

const (
	PaymentMethodToss     PaymentMethod = "toss"
	PaymentMethodKakaoPay PaymentMethod = "kakaopay"
	PaymentMethodNaverPay PaymentMethod = "naverpay"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodToss,
	PaymentMethodKakaoPay,
	PaymentMethodNaverPay,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
