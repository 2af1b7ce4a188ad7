package validate

import "testing"

func TestEmail(t *testing.T) {
	valid := []string{"a@b.pl", "anna.kowalska@example.com"}
	invalid := []string{"", "no-at", "@b.pl", "a@", "a b@c.pl"}

	for _, email := range valid {
		if !Email(email) {
			t.Errorf("Email(%q) = false, want true", email)
		}
	}
	for _, email := range invalid {
		if Email(email) {
			t.Errorf("Email(%q) = true, want false", email)
		}
	}
}

func TestPrice(t *testing.T) {
	valid := []string{"0", "150.00", " 99.99 "}
	invalid := []string{"", "-5", "abc", "10,50"}

	for _, price := range valid {
		if !Price(price) {
			t.Errorf("Price(%q) = false, want true", price)
		}
	}
	for _, price := range invalid {
		if Price(price) {
			t.Errorf("Price(%q) = true, want false", price)
		}
	}
}
