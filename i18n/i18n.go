// Package i18n holds the translation tables for user-facing bot texts.
// Russian is the default language, matching the subscriber base.
package i18n

import "fmt"

const DefaultLanguage = "ru"

var translations = map[string]map[string]string{
	"ru": {
		"notification_fixed_price":   "📌 Фикс. цена",
		"notification_current_price": "💲 Текущая цена",
		"notification_change":        "📊 Изменение",
		"notification_time":          "⏰ Время",
		"notification_unavailable":   "⚠️ *Недоступно на %s*",
		"open_on":                    "🌐 Открыть на %s",
		"open_in_app":                "📱 В приложении %s",
		"subscription_inactive":      "❌ Подписка неактивна",
		"subscription_active":        "✅ Подписка активна до %s (%d дн.)",
		"subscription_expired":       "⌛ Подписка истекла %s",
		"promo_success":              "🎉 Промокод «%s» активирован!\n📅 Подписка активна на %d дней.",
		"promo_invalid":              "❌ Промокод не найден или истёк.",
		"promo_already_used":         "⚠️ Промокод уже использован.",
		"activation_success":         "✅ Код активации принят!",
		"activation_invalid":         "❌ Неверный код активации.",
		"welcome":                    "👋 Привет! Я слежу за ценами фьючерсов и пришлю сигнал, когда цена изменится сильнее вашего порога.",
		"settings_saved":             "✅ Настройки сохранены: период %d мин, порог %.1f%%.",
		"settings_usage":             "Использование: /settings <период_мин> <процент>",
		"settings_invalid":           "❌ Период и процент должны быть положительными числами.",
		"language_saved":             "✅ Язык интерфейса: русский.",
		"exchange_saved":             "✅ Биржа для ссылок: %s.",
		"exchange_unknown":           "❌ Неизвестная биржа. Доступны: %s.",
	},
	"en": {
		"notification_fixed_price":   "📌 Fixed Price",
		"notification_current_price": "💲 Current Price",
		"notification_change":        "📊 Change",
		"notification_time":          "⏰ Time",
		"notification_unavailable":   "⚠️ *Not available on %s*",
		"open_on":                    "🌐 Open on %s",
		"open_in_app":                "📱 Open in App %s",
		"subscription_inactive":      "❌ Subscription inactive",
		"subscription_active":        "✅ Subscription active until %s (%d days)",
		"subscription_expired":       "⌛ Subscription expired on %s",
		"promo_success":              "🎉 Promo code \"%s\" activated!\n📅 Subscription active for %d days.",
		"promo_invalid":              "❌ Promo code not found or expired.",
		"promo_already_used":         "⚠️ Promo code already used.",
		"activation_success":         "✅ Activation code accepted!",
		"activation_invalid":         "❌ Invalid activation code.",
		"welcome":                    "👋 Hi! I watch futures prices and ping you when a price moves past your threshold.",
		"settings_saved":             "✅ Settings saved: period %d min, threshold %.1f%%.",
		"settings_usage":             "Usage: /settings <period_min> <percent>",
		"settings_invalid":           "❌ Period and percent must be positive numbers.",
		"language_saved":             "✅ Interface language: English.",
		"exchange_saved":             "✅ Link exchange: %s.",
		"exchange_unknown":           "❌ Unknown exchange. Available: %s.",
	},
}

// Localizer implements core.Localizer over the static tables.
type Localizer struct{}

func New() *Localizer { return &Localizer{} }

// Text resolves key in the given language, formatting args into the
// translation. Unknown languages fall back to Russian; unknown keys are
// returned verbatim so a missing translation is visible instead of silent.
func (l *Localizer) Text(key, language string, args ...any) string {
	table, ok := translations[language]
	if !ok {
		table = translations[DefaultLanguage]
	}

	text, ok := table[key]
	if !ok {
		return key
	}

	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}

// IsValidLanguage reports whether a translation table exists for language.
func IsValidLanguage(language string) bool {
	_, ok := translations[language]
	return ok
}
