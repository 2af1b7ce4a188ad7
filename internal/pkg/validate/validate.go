package validate

import (
	"strconv"
	"strings"
)

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

func Email(value string) bool {
	value = strings.TrimSpace(value)
	at := strings.Index(value, "@")
	return at > 0 && at < len(value)-1 && !strings.ContainsAny(value, " \t")
}

// Price accepts a decimal string with a non-negative value, the form prices
// arrive in from multipart requests.
func Price(value string) bool {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	return err == nil && parsed >= 0
}

func MaxLen(value string, max int) bool {
	return len(value) <= max
}
