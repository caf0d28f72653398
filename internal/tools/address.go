package tools

import (
	"net/url"
	"strings"
)

// StripPassword hides password of DSN like address for logging.
func StripPassword(address string) string {
	u, err := url.Parse(address)
	if err != nil || u.User == nil {
		return address
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
		return strings.Replace(u.String(), "xxxxx", "***", 1)
	}
	return u.String()
}

// LogAddresses joins addresses without passwords.
func LogAddresses(addresses []string) string {
	cleaned := make([]string, 0, len(addresses))
	for _, a := range addresses {
		cleaned = append(cleaned, StripPassword(a))
	}
	return strings.Join(cleaned, ", ")
}
