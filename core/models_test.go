package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserConfig_Validate(t *testing.T) {
	valid := UserConfig{UserID: 1, Period: 10 * time.Minute, Percent: 3}
	assert.NoError(t, valid.Validate())

	assert.ErrorIs(t, UserConfig{Period: 10 * time.Minute, Percent: 0}.Validate(), ErrInvalidPercent)
	assert.ErrorIs(t, UserConfig{Period: 10 * time.Minute, Percent: -1}.Validate(), ErrInvalidPercent)
	assert.ErrorIs(t, UserConfig{Period: 0, Percent: 3}.Validate(), ErrInvalidPeriod)
}

func TestUserConfig_Equal(t *testing.T) {
	base := UserConfig{UserID: 1, Period: 10 * time.Minute, Percent: 3, Language: "ru", Exchange: "binance"}

	same := base
	same.UserID = 2 // identity is not part of the settings diff
	assert.True(t, base.Equal(same))

	changed := base
	changed.Percent = 5
	assert.False(t, base.Equal(changed))

	changed = base
	changed.Exchange = "bybit"
	assert.False(t, base.Equal(changed))
}
