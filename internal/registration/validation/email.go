package validation

import (
	"slices"
	"strings"

	"github.com/asaskevich/govalidator"

	dErrors "nftform/pkg/domain-errors"
)

// Provider domain groups whose "+tag" subaddress is folded away. Gmail dot
// removal and googlemail.com -> gmail.com conversion are intentionally off:
// those addresses stay distinct registrations.
var (
	gmailDomains   = []string{"gmail.com", "googlemail.com"}
	icloudDomains  = []string{"icloud.com", "me.com"}
	outlookDomains = []string{
		"hotmail.at", "hotmail.be", "hotmail.ca", "hotmail.cl", "hotmail.co.il",
		"hotmail.co.nz", "hotmail.co.th", "hotmail.co.uk", "hotmail.com",
		"hotmail.com.ar", "hotmail.com.au", "hotmail.com.br", "hotmail.com.gr",
		"hotmail.com.mx", "hotmail.com.pe", "hotmail.com.tr", "hotmail.com.vn",
		"hotmail.cz", "hotmail.de", "hotmail.dk", "hotmail.es", "hotmail.fr",
		"hotmail.hu", "hotmail.id", "hotmail.ie", "hotmail.in", "hotmail.it",
		"hotmail.jp", "hotmail.kr", "hotmail.lv", "hotmail.my", "hotmail.ph",
		"hotmail.pt", "hotmail.sa", "hotmail.sg", "hotmail.sk", "live.be",
		"live.co.uk", "live.com", "live.com.ar", "live.com.mx", "live.de",
		"live.es", "live.eu", "live.fr", "live.it", "live.nl", "msn.com",
		"outlook.at", "outlook.be", "outlook.cl", "outlook.co.il",
		"outlook.co.nz", "outlook.co.th", "outlook.com", "outlook.com.ar",
		"outlook.com.au", "outlook.com.br", "outlook.com.gr", "outlook.com.pe",
		"outlook.com.tr", "outlook.com.vn", "outlook.cz", "outlook.de",
		"outlook.dk", "outlook.es", "outlook.fr", "outlook.hu", "outlook.id",
		"outlook.ie", "outlook.in", "outlook.it", "outlook.jp", "outlook.kr",
		"outlook.lv", "outlook.my", "outlook.ph", "outlook.pt", "outlook.sa",
		"outlook.sg", "outlook.sk", "passport.com",
	}
	yandexDomains = []string{"yandex.ru", "yandex.ua", "yandex.kz", "yandex.com", "yandex.by", "ya.ru"}
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
	"`", "&#96;",
	`\`, "&#x5C;",
)

// Escape neutralizes characters with meaning in HTML text and attribute
// context. It is applied to every free-text field before storage.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}

// NormalizeEmail escapes, syntax-checks and canonicalizes raw. The syntax
// check runs on the escaped form, so an address that needed escaping is
// rejected rather than stored in mangled form. The result is a fixed point:
// NormalizeEmail(NormalizeEmail(x)) == NormalizeEmail(x).
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !govalidator.StringLength(trimmed, "1", "255") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid email")
	}
	escaped := Escape(trimmed)
	// a trailing dot names the same mailbox as the bare domain
	if !govalidator.IsEmail(escaped) || strings.HasSuffix(escaped, ".") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid email")
	}

	at := strings.LastIndexByte(escaped, '@')
	local, domain := escaped[:at], strings.ToLower(escaped[at+1:])

	switch {
	case slices.Contains(gmailDomains, domain),
		slices.Contains(icloudDomains, domain),
		slices.Contains(outlookDomains, domain):
		local, _, _ = strings.Cut(local, "+")
	case slices.Contains(yandexDomains, domain):
		domain = "yandex.ru"
	}
	if local == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid email")
	}

	return strings.ToLower(local) + "@" + domain, nil
}
