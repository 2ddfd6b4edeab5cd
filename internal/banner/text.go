package banner

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/rickgao/geohash/internal/model"
)

// Message keys.
const (
	keyNotYetPostedToday = "error.not_yet_posted_today"
	keyNotYetPosted      = "error.not_yet_posted"
	keyNoConnection      = "error.no_connection"
	keyServerFailure     = "error.server_failure"

	keyTodayHashpoint   = "marker.today_hashpoint"
	keyTodayGlobalpoint = "marker.today_globalpoint"
	keyRetroHashpoint   = "marker.retro_hashpoint"
	keyRetroGlobalpoint = "marker.retro_globalpoint"
)

// supported lists the catalog languages; the first is the default.
var supported = []language.Tag{language.English, language.German}

var messages = map[language.Tag]map[string]string{
	language.English: {
		keyNotYetPostedToday: "Today's stock value hasn't been posted yet. Try again after the market opens.",
		keyNotYetPosted:      "The stock value for %s hasn't been posted.",
		keyNoConnection:      "Couldn't reach the stock server. Check your network connection.",
		keyServerFailure:     "The stock server sent something unexpected. Try again later.",
		keyTodayHashpoint:    "Today's hashpoint",
		keyTodayGlobalpoint:  "Today's globalpoint",
		keyRetroHashpoint:    "Hashpoint for %s",
		keyRetroGlobalpoint:  "Globalpoint for %s",
	},
	language.German: {
		keyNotYetPostedToday: "Der heutige Börsenwert ist noch nicht veröffentlicht. Bitte nach Börsenöffnung erneut versuchen.",
		keyNotYetPosted:      "Der Börsenwert für %s ist nicht veröffentlicht.",
		keyNoConnection:      "Der Börsenserver ist nicht erreichbar. Bitte die Netzwerkverbindung prüfen.",
		keyServerFailure:     "Der Börsenserver hat etwas Unerwartetes gesendet. Bitte später erneut versuchen.",
		keyTodayHashpoint:    "Heutiger Hashpoint",
		keyTodayGlobalpoint:  "Heutiger Globalpoint",
		keyRetroHashpoint:    "Hashpoint für %s",
		keyRetroGlobalpoint:  "Globalpoint für %s",
	},
}

var cat = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range messages {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}()

// Texts renders messages in one language.
type Texts struct {
	printer *message.Printer
}

// NewTexts returns Texts for the best supported match of lang (a BCP 47 tag
// such as "en-US"). Unknown or empty tags fall back to English.
func NewTexts(lang string) *Texts {
	tag := language.English
	if lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			_, i, _ := language.NewMatcher(supported).Match(parsed)
			tag = supported[i]
		}
	}
	return &Texts{printer: message.NewPrinter(tag, message.Catalog(cat))}
}

// Failure returns the banner text for a failed lookup. isToday picks the
// phrasing for a value that should appear later today.
func (t *Texts) Failure(code model.ResponseCode, date model.Date, isToday bool) string {
	switch code {
	case model.ResponseNotYetPosted:
		if isToday {
			return t.printer.Sprintf(keyNotYetPostedToday)
		}
		return t.printer.Sprintf(keyNotYetPosted, date.String())
	case model.ResponseNoConnection:
		return t.printer.Sprintf(keyNoConnection)
	default:
		return t.printer.Sprintf(keyServerFailure)
	}
}

// MarkerTitle returns the title for a destination marker.
func (t *Texts) MarkerTitle(info model.Info) string {
	switch {
	case !info.IsRetro() && info.IsGlobalhash():
		return t.printer.Sprintf(keyTodayGlobalpoint)
	case !info.IsRetro():
		return t.printer.Sprintf(keyTodayHashpoint)
	case info.IsGlobalhash():
		return t.printer.Sprintf(keyRetroGlobalpoint, info.Date().String())
	default:
		return t.printer.Sprintf(keyRetroHashpoint, info.Date().String())
	}
}
