package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const (
	SignatureHeader    = "x-paystack-signature"
	EventChargeSuccess = "charge.success"
)

// Event is the part of a webhook payload the service acts on.
type Event struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// ValidSignature checks the hex HMAC-SHA512 of body under the secret key.
func ValidSignature(secret string, body []byte, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil || len(want) != sha512.Size {
		return false
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)

	return hmac.Equal(mac.Sum(nil), want)
}

// Sign returns the signature Paystack would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

func ParseEvent(body []byte) (Event, error) {
	var ev Event

	err := json.Unmarshal(body, &ev)
	if err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}

	return ev, nil
}
