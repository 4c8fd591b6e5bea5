package folder

import (
	"golang.org/x/text/language"

	"github.com/doronbehar/mail/internal/model"
)

// translations holds the role folder display names per supported locale.
// English is the reference locale; a role missing from a table falls
// back to the untranslated name.
var translations = map[language.Tag]map[model.Role]string{
	language.English: {
		model.RoleAll:     "All",
		model.RoleInbox:   "Inbox",
		model.RoleFlagged: "Favorites",
		model.RoleDrafts:  "Drafts",
		model.RoleSent:    "Sent",
		model.RoleArchive: "Archive",
		model.RoleJunk:    "Junk",
		model.RoleTrash:   "Trash",
	},
	language.German: {
		model.RoleAll:     "Alle",
		model.RoleInbox:   "Posteingang",
		model.RoleFlagged: "Favoriten",
		model.RoleDrafts:  "Entwürfe",
		model.RoleSent:    "Gesendet",
		model.RoleArchive: "Archiv",
		model.RoleJunk:    "Spam",
		model.RoleTrash:   "Papierkorb",
	},
	language.French: {
		model.RoleAll:     "Tous",
		model.RoleInbox:   "Boîte de réception",
		model.RoleFlagged: "Favoris",
		model.RoleDrafts:  "Brouillons",
		model.RoleSent:    "Envoyés",
		model.RoleArchive: "Archives",
		model.RoleJunk:    "Indésirables",
		model.RoleTrash:   "Corbeille",
	},
	language.Spanish: {
		model.RoleAll:     "Todos",
		model.RoleInbox:   "Bandeja de entrada",
		model.RoleFlagged: "Favoritos",
		model.RoleDrafts:  "Borradores",
		model.RoleSent:    "Enviados",
		model.RoleArchive: "Archivo",
		model.RoleJunk:    "Correo no deseado",
		model.RoleTrash:   "Papelera",
	},
}

// supportedLocales fixes the matcher's preference order; the first entry
// is the fallback.
var supportedLocales = []language.Tag{
	language.English,
	language.German,
	language.French,
	language.Spanish,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// Translator rewrites well-known role folder display names into a target
// locale. It is pure and stateless; a missing translation leaves the
// name unchanged.
type Translator struct {
	table map[model.Role]string
}

// NewTranslator negotiates the closest supported locale for the given
// BCP 47 tag. Unparseable or unsupported tags fall back to English.
func NewTranslator(locale string) *Translator {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	_, idx, _ := localeMatcher.Match(tag)
	return &Translator{table: translations[supportedLocales[idx]]}
}

// Translate returns the localized display name for a role, or the input
// role name when no translation exists.
func (t *Translator) Translate(role model.Role) string {
	if name, ok := t.table[role]; ok {
		return name
	}
	return string(role)
}

// TranslateAll rewrites the display names of all role folders in place.
// Roleless folders keep their server-derived names.
func (t *Translator) TranslateAll(folders []*model.Folder) {
	for _, folder := range folders {
		role := folder.MainRole()
		if role == "" {
			continue
		}
		if _, ranked := role.Rank(); !ranked {
			continue
		}
		if name, ok := t.table[role]; ok {
			folder.Name = name
		}
	}
}
