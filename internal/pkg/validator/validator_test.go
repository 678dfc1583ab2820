package validator

import "testing"

type signupLike struct {
	Name   string `json:"name" validate:"required,notblank,max=100"`
	Email  string `json:"email" validate:"required,email"`
	Mobile string `json:"mobile_number" validate:"required,mobile"`
	PIN    string `json:"pin" validate:"required,pin"`
}

func TestValidateAcceptsWellFormedInput(t *testing.T) {
	errs := Validate(&signupLike{Name: "Asha", Email: "asha@example.com", Mobile: "+919876543210", PIN: "1234"})
	if errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	errs := Validate(&signupLike{Name: "  ", Email: "nope", Mobile: "12ab", PIN: "12"})

	expected := map[string]string{
		"name":          "Value must not be blank",
		"email":         "Invalid email format",
		"mobile_number": "Mobile number must be 10 to 15 digits, optionally starting with +",
		"pin":           "PIN must be 4 to 6 digits",
	}
	for field, msg := range expected {
		if errs[field] != msg {
			t.Errorf("field %s: expected %q, got %q", field, msg, errs[field])
		}
	}
}

func TestPINRejectsNonDigits(t *testing.T) {
	cases := []string{"12a4", "1234567", "", " 1234"}
	for _, pin := range cases {
		if err := ValidateVar(pin, "pin"); err == nil {
			t.Errorf("expected %q to be rejected", pin)
		}
	}
	if err := ValidateVar("123456", "pin"); err != nil {
		t.Errorf("expected 6-digit pin to pass: %v", err)
	}
}
