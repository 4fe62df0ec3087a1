package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visaslot/internal/domain/visa"
)

func setKeys(t *testing.T) {
	t.Helper()
	t.Setenv("COOKIE_HASH_KEY", base64.StdEncoding.EncodeToString(make([]byte, 32)))
	t.Setenv("COOKIE_BLOCK_KEY", base64.StdEncoding.EncodeToString(make([]byte, 32)))
}

func TestFromEnvDefaults(t *testing.T) {
	setKeys(t)
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, []visa.CountryCode{"USA", "Canada", "China"}, cfg.Countries)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, int64(9900), cfg.PaymentAmountMinor)
	assert.Equal(t, "INR", cfg.PaymentCurrency)
	assert.Equal(t, 10*time.Minute, cfg.PaymentTimeout)
	assert.Len(t, cfg.CookieHashKey, 32)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Nil(t, cfg.ProfileKey)
}

func TestFromEnvRequiresCookieKeys(t *testing.T) {
	t.Setenv("COOKIE_HASH_KEY", "")
	t.Setenv("COOKIE_BLOCK_KEY", "")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "COOKIE_HASH_KEY")
}

func TestFromEnvOverrides(t *testing.T) {
	setKeys(t)
	t.Setenv("SLOT_COUNTRIES", "USA, Canada")
	t.Setenv("SLOT_POLL_SECONDS", "5")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("VISA_API_BASE", "http://slots.local/")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []visa.CountryCode{"USA", "Canada"}, cfg.Countries)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "http://slots.local", cfg.APIBase)
}

func TestFromEnvProfileKeyFromFile(t *testing.T) {
	setKeys(t)
	path := filepath.Join(t.TempDir(), "profile.key")
	require.NoError(t, os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(make([]byte, 32))+"\n"), 0o600))
	t.Setenv("PROFILE_KEY", path)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Len(t, cfg.ProfileKey, 32)

	t.Setenv("PROFILE_KEY", base64.StdEncoding.EncodeToString(make([]byte, 8)))
	_, err = FromEnv()
	assert.ErrorContains(t, err, "32 bytes")
}

func TestFromEnvRejectsEmptyCountries(t *testing.T) {
	setKeys(t)
	t.Setenv("SLOT_COUNTRIES", " , ")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestLoadWithoutCookieKeys(t *testing.T) {
	t.Setenv("COOKIE_HASH_KEY", "")
	t.Setenv("COOKIE_BLOCK_KEY", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.CookieHashKey)
	assert.Equal(t, "visaslot.bookings", cfg.KafkaTopic)
}
