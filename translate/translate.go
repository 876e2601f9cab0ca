// Package translate formats user-facing messages for the current locale.
package translate

import (
	"log"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/message"
)

var printer *message.Printer

func init() {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("kl27: locale: %v", err)
	}

	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	printer = message.NewPrinter(message.MatchLanguage(locales...))
}

// From formats an en-US Sprintf() style key in the active locale.
//
// Numbers are rendered with the locale's digit grouping, so callers that
// need raw hex or addresses should pre-format them with fmt first.
func From(key message.Reference, args ...any) string {
	return printer.Sprintf(key, args...)
}
