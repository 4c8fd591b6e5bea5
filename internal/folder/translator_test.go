package folder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/doronbehar/mail/internal/model"
)

func TestTranslatorLocaleNegotiation(t *testing.T) {
	assert.Equal(t, "Posteingang", NewTranslator("de").Translate(model.RoleInbox))
	assert.Equal(t, "Posteingang", NewTranslator("de-AT").Translate(model.RoleInbox))
	assert.Equal(t, "Corbeille", NewTranslator("fr").Translate(model.RoleTrash))
	assert.Equal(t, "Papelera", NewTranslator("es-MX").Translate(model.RoleTrash))

	// Unsupported and unparseable locales fall back to English.
	assert.Equal(t, "Inbox", NewTranslator("tlh").Translate(model.RoleInbox))
	assert.Equal(t, "Inbox", NewTranslator("!!").Translate(model.RoleInbox))
}

func TestTranslateMissingRoleReturnsInput(t *testing.T) {
	tr := NewTranslator("en")
	assert.Equal(t, "receipts", tr.Translate(model.Role("receipts")))
}

func TestTranslateAll(t *testing.T) {
	inbox := model.NewFolder("INBOX", '/', nil)
	inbox.AddRole(model.RoleInbox)

	plain := model.NewFolder("Receipts", '/', nil)

	custom := model.NewFolder("Oddball", '/', nil)
	custom.AddRole(model.Role("oddball"))

	NewTranslator("de").TranslateAll([]*model.Folder{inbox, plain, custom})

	assert.Equal(t, "Posteingang", inbox.Name)
	assert.Equal(t, "Receipts", plain.Name)
	assert.Equal(t, "Oddball", custom.Name)
}
