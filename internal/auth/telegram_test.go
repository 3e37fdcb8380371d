package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "1234567:test-bot-token"

func signWidget(payload map[string]interface{}, botToken string) string {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(dataCheckString(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

func signWebApp(payload map[string]interface{}, botToken string) string {
	keyMAC := hmac.New(sha256.New, []byte("WebAppData"))
	keyMAC.Write([]byte(botToken))
	mac := hmac.New(sha256.New, keyMAC.Sum(nil))
	mac.Write([]byte(dataCheckString(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCheckWidgetHash(t *testing.T) {
	payload := map[string]interface{}{
		"id":         float64(123456789),
		"first_name": "Ivan",
		"username":   "ivan_test",
		"auth_date":  float64(1700000000),
	}
	payload["hash"] = signWidget(payload, testBotToken)

	require.NoError(t, CheckWidgetHash(payload, testBotToken))
}

func TestCheckWidgetHashTampered(t *testing.T) {
	payload := map[string]interface{}{
		"id":        float64(123456789),
		"auth_date": float64(1700000000),
	}
	payload["hash"] = signWidget(payload, testBotToken)

	payload["id"] = float64(987654321)
	assert.Error(t, CheckWidgetHash(payload, testBotToken))
}

func TestCheckWidgetHashWrongToken(t *testing.T) {
	payload := map[string]interface{}{
		"id":        float64(1),
		"auth_date": float64(1700000000),
	}
	payload["hash"] = signWidget(payload, "other-token")

	assert.Error(t, CheckWidgetHash(payload, testBotToken))
}

func TestCheckWidgetHashMissing(t *testing.T) {
	assert.Error(t, CheckWidgetHash(map[string]interface{}{"id": float64(1)}, testBotToken))
}

func TestCheckWebAppHash(t *testing.T) {
	payload := map[string]interface{}{
		"user": map[string]interface{}{
			"id":         float64(123456789),
			"first_name": "Ivan",
		},
		"auth_date": "1700000000",
	}
	payload["hash"] = signWebApp(payload, testBotToken)

	require.NoError(t, CheckWebAppHash(payload, testBotToken))

	// Widget and WebApp derive different secrets from the same token.
	assert.Error(t, CheckWidgetHash(payload, testBotToken))
}

func TestCheckWebAppHashTamperedUser(t *testing.T) {
	payload := map[string]interface{}{
		"user": map[string]interface{}{
			"id": float64(123456789),
		},
		"auth_date": "1700000000",
	}
	payload["hash"] = signWebApp(payload, testBotToken)

	payload["user"] = map[string]interface{}{"id": float64(42)}
	assert.Error(t, CheckWebAppHash(payload, testBotToken))
}

func TestDataCheckStringOrderAndHashExclusion(t *testing.T) {
	payload := map[string]interface{}{
		"b":    "2",
		"a":    "1",
		"hash": "ignored",
	}
	assert.Equal(t, "a=1\nb=2", dataCheckString(payload))
}
