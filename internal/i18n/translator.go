// Package i18n translates error codes into user-facing messages in the language negotiated
// from Accept-Language.
package i18n

import (
	"golang.org/x/text/language"
)

// supported is ordered by preference; the first entry is the fallback.
var supported = []language.Tag{
	language.English,
	language.Croatian,
	language.German,
}

var catalogs = map[language.Tag]map[string]string{
	language.English: {
		"INVALID_CREDENTIALS":   "Invalid email or password.",
		"ALREADY_EXISTS":        "An account with this email already exists.",
		"REFRESH_TOKEN_INVALID": "Your session could not be renewed. Please sign in again.",
		"REFRESH_TOKEN_EXPIRED": "Your session has expired. Please sign in again.",
		"SESSION_EXPIRED":       "Your session has expired. Please sign in again.",
		"SESSION_REVOKED":       "Your session has been signed out. Please sign in again.",
		"UNAUTHENTICATED":       "Authentication is required.",
		"FORBIDDEN":             "You do not have permission to perform this action.",
		"USER_NOT_FOUND":        "User not found.",
		"SESSION_NOT_FOUND":     "Session not found.",
		"VALIDATION_FAILED":     "Some fields are invalid.",
		"INTERNAL_ERROR":        "Something went wrong. Please try again later.",
		"NOT_FOUND":             "Resource not found.",
		"METHOD_NOT_ALLOWED":    "Method not allowed.",
	},
	language.Croatian: {
		"INVALID_CREDENTIALS":   "Neispravan email ili lozinka.",
		"ALREADY_EXISTS":        "Račun s ovom email adresom već postoji.",
		"REFRESH_TOKEN_INVALID": "Sesiju nije moguće obnoviti. Prijavite se ponovno.",
		"REFRESH_TOKEN_EXPIRED": "Sesija je istekla. Prijavite se ponovno.",
		"SESSION_EXPIRED":       "Sesija je istekla. Prijavite se ponovno.",
		"SESSION_REVOKED":       "Odjavljeni ste. Prijavite se ponovno.",
		"UNAUTHENTICATED":       "Potrebna je prijava.",
		"FORBIDDEN":             "Nemate ovlasti za ovu radnju.",
		"USER_NOT_FOUND":        "Korisnik nije pronađen.",
		"SESSION_NOT_FOUND":     "Sesija nije pronađena.",
		"VALIDATION_FAILED":     "Neka polja nisu ispravna.",
		"INTERNAL_ERROR":        "Došlo je do pogreške. Pokušajte ponovno kasnije.",
		"NOT_FOUND":             "Resurs nije pronađen.",
		"METHOD_NOT_ALLOWED":    "Metoda nije dopuštena.",
	},
	language.German: {
		"INVALID_CREDENTIALS":   "Ungültige E-Mail-Adresse oder ungültiges Passwort.",
		"ALREADY_EXISTS":        "Ein Konto mit dieser E-Mail-Adresse existiert bereits.",
		"REFRESH_TOKEN_INVALID": "Die Sitzung konnte nicht erneuert werden. Bitte melden Sie sich erneut an.",
		"REFRESH_TOKEN_EXPIRED": "Die Sitzung ist abgelaufen. Bitte melden Sie sich erneut an.",
		"SESSION_EXPIRED":       "Die Sitzung ist abgelaufen. Bitte melden Sie sich erneut an.",
		"SESSION_REVOKED":       "Sie wurden abgemeldet. Bitte melden Sie sich erneut an.",
		"UNAUTHENTICATED":       "Anmeldung erforderlich.",
		"FORBIDDEN":             "Sie haben keine Berechtigung für diese Aktion.",
		"USER_NOT_FOUND":        "Benutzer nicht gefunden.",
		"SESSION_NOT_FOUND":     "Sitzung nicht gefunden.",
		"VALIDATION_FAILED":     "Einige Felder sind ungültig.",
		"INTERNAL_ERROR":        "Etwas ist schiefgelaufen. Bitte versuchen Sie es später erneut.",
		"NOT_FOUND":             "Ressource nicht gefunden.",
		"METHOD_NOT_ALLOWED":    "Methode nicht erlaubt.",
	},
}

// Translator resolves error codes to localized messages. Safe for concurrent use.
type Translator struct {
	matcher language.Matcher
}

// NewTranslator returns a Translator over the built-in catalogs.
func NewTranslator() *Translator {
	return &Translator{matcher: language.NewMatcher(supported)}
}

// Negotiate picks the best supported language for an Accept-Language header value.
// Malformed or empty headers yield English.
func (t *Translator) Negotiate(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return supported[0]
	}
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return supported[0]
	}
	_, idx, conf := t.matcher.Match(prefs...)
	if conf == language.No {
		return supported[0]
	}
	return supported[idx]
}

// Message returns the message for code in tag. Unknown codes fall back to the English
// catalog, then to fallback.
func (t *Translator) Message(tag language.Tag, code, fallback string) string {
	if msg, ok := catalogs[tag][code]; ok {
		return msg
	}
	if msg, ok := catalogs[supported[0]][code]; ok {
		return msg
	}
	return fallback
}

// Translate is Negotiate followed by Message.
func (t *Translator) Translate(acceptLanguage, code, fallback string) string {
	return t.Message(t.Negotiate(acceptLanguage), code, fallback)
}
