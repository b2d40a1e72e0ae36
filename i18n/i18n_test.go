package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalizer_Text(t *testing.T) {
	loc := New()

	assert.Equal(t, "📌 Fixed Price", loc.Text("notification_fixed_price", "en"))
	assert.Equal(t, "📌 Фикс. цена", loc.Text("notification_fixed_price", "ru"))
}

func TestLocalizer_UnknownLanguageFallsBackToRussian(t *testing.T) {
	loc := New()

	assert.Equal(t, loc.Text("notification_change", "ru"), loc.Text("notification_change", "de"))
}

func TestLocalizer_UnknownKeyReturnedVerbatim(t *testing.T) {
	loc := New()

	assert.Equal(t, "no_such_key", loc.Text("no_such_key", "en"))
}

func TestLocalizer_FormatsArguments(t *testing.T) {
	loc := New()

	assert.Equal(t, "🌐 Open on Bybit", loc.Text("open_on", "en", "Bybit"))
	assert.Equal(t, "⚠️ *Not available on OKX*", loc.Text("notification_unavailable", "en", "OKX"))
}

func TestIsValidLanguage(t *testing.T) {
	assert.True(t, IsValidLanguage("ru"))
	assert.True(t, IsValidLanguage("en"))
	assert.False(t, IsValidLanguage("fr"))
}
