package notification

import (
	"errors"
	"testing"

	"github.com/raykavin/pricepulse/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tb "gopkg.in/tucnak/telebot.v2"
)

func TestInlineKeyboard(t *testing.T) {
	keyboard := inlineKeyboard([]core.AlertLink{
		{Label: "🌐 Open on Bybit", URL: "https://www.bybit.com/trade/usdt/BTCUSDT"},
		{Label: "📱 Open in App Bybit", URL: "https://bybit.onelink.me/EhY6"},
	})

	require.NotNil(t, keyboard)
	require.Len(t, keyboard.InlineKeyboard, 2)
	require.Len(t, keyboard.InlineKeyboard[0], 1)
	assert.Equal(t, "🌐 Open on Bybit", keyboard.InlineKeyboard[0][0].Text)
	assert.Equal(t, "https://bybit.onelink.me/EhY6", keyboard.InlineKeyboard[1][0].URL)
}

func TestInlineKeyboard_EmptyLinks(t *testing.T) {
	assert.Nil(t, inlineKeyboard(nil))
}

func TestBlocked(t *testing.T) {
	assert.True(t, blocked(tb.ErrBlockedByUser))
	assert.True(t, blocked(errors.New("api error: bot was blocked by the user")))
	assert.True(t, blocked(errors.New("user is deactivated")))
	assert.False(t, blocked(errors.New("telegram: internal server error")))
}
