package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"time"
)

type signaturePayload struct {
	EventID     string `json:"eventId"`
	AgreementID string `json:"agreementId"`
	UserID      string `json:"userId"`
	Action      string `json:"action"`
	CreatedAt   string `json:"createdAt"`
}

func buildSignaturePayload(e *Event) signaturePayload {
	return signaturePayload{
		EventID:     e.EventID.String(),
		AgreementID: e.AgreementID.String(),
		UserID:      e.UserID.String(),
		Action:      string(e.Action),
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Sign generates an HMAC signature for the event.
func Sign(e *Event, key []byte) ([]byte, error) {
	data, err := json.Marshal(buildSignaturePayload(e))
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write(data)
	return mac.Sum(nil), nil
}

// VerifySignature verifies the HMAC signature for the event.
func VerifySignature(e *Event, key []byte) (bool, error) {
	if len(e.Signature) == 0 {
		return false, nil
	}
	expected, err := Sign(e, key)
	if err != nil {
		return false, err
	}
	return hmac.Equal(expected, e.Signature), nil
}
