package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/vladimiradmaev/food-diary/internal/errors"
)

// encodeValue renders a payload value for the data-check string. Nested
// objects are serialized as compact JSON, everything else as its plain
// string form.
func encodeValue(value interface{}) string {
	switch v := value.(type) {
	case map[string]interface{}:
		data, _ := json.Marshal(v)
		return string(data)
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		// Telegram ids are large enough for fmt.Sprint to pick exponent
		// notation, which would never match the signed payload.
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func dataCheckString(payload map[string]interface{}) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s=%s", k, encodeValue(payload[k])))
	}
	return strings.Join(lines, "\n")
}

func payloadHash(payload map[string]interface{}) (string, bool) {
	raw, ok := payload["hash"]
	if !ok {
		return "", false
	}
	hash, ok := raw.(string)
	return hash, ok
}

// CheckWidgetHash validates a Telegram Login Widget payload: the secret is
// sha256(bot_token) and the signature is HMAC-SHA256 over the sorted
// key=value lines.
func CheckWidgetHash(payload map[string]interface{}, botToken string) error {
	hash, ok := payloadHash(payload)
	if !ok {
		return apperrors.ErrUnauthorized
	}

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(dataCheckString(payload)))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return apperrors.ErrUnauthorized
	}
	return nil
}

// CheckWebAppHash validates a Telegram WebApp init payload: the secret is
// HMAC-SHA256("WebAppData", bot_token) and the signature covers the sorted
// key=value lines with nested objects JSON-encoded.
func CheckWebAppHash(payload map[string]interface{}, botToken string) error {
	hash, ok := payloadHash(payload)
	if !ok {
		return apperrors.ErrUnauthorized
	}

	keyMAC := hmac.New(sha256.New, []byte("WebAppData"))
	keyMAC.Write([]byte(botToken))
	secret := keyMAC.Sum(nil)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(dataCheckString(payload)))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return apperrors.ErrUnauthorized
	}
	return nil
}
