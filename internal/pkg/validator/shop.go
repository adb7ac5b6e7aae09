package validator

import (
	"errors"
	"regexp"
	"strings"
)

// Shop domains look like "store-name.myshopify.com". The platform only ever
// sends lowercase domains; anything else in the header is a malformed request.
var shopDomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.myshopify\.com$`)

func ValidateShopDomain(domain string) error {
	if domain == "" {
		return errors.New("shop domain is required")
	}
	if len(domain) > 255 {
		return errors.New("shop domain too long")
	}
	if strings.ContainsAny(domain, " /\\") {
		return errors.New("shop domain contains invalid characters")
	}
	if !shopDomainPattern.MatchString(domain) {
		return errors.New("invalid shop domain format")
	}
	return nil
}
