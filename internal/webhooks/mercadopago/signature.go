package mercadopagowebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrSignatureMissing   = errors.New("mercadopago signature missing")
	ErrSignatureMalformed = errors.New("mercadopago signature malformed")
	ErrSignatureMismatch  = errors.New("mercadopago signature mismatch")
)

// SignatureHeader is the parsed x-signature header ("ts=...,v1=...").
type SignatureHeader struct {
	Timestamp string
	V1        string
}

func ParseSignatureHeader(raw string) (SignatureHeader, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SignatureHeader{}, ErrSignatureMissing
	}
	var sig SignatureHeader
	for _, part := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			sig.Timestamp = strings.TrimSpace(value)
		case "v1":
			sig.V1 = strings.ToLower(strings.TrimSpace(value))
		}
	}
	if sig.Timestamp == "" || sig.V1 == "" {
		return SignatureHeader{}, ErrSignatureMalformed
	}
	return sig, nil
}

// SignatureManifest builds the string MercadoPago signs. Parts with no value
// are left out of the manifest.
func SignatureManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}

// VerifySignature checks the x-signature header against the notification's
// data id and x-request-id using the webhook secret.
func VerifySignature(secret, header, requestID, dataID string) error {
	sig, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}
	expected := ComputeSignature(secret, SignatureManifest(dataID, requestID, sig.Timestamp))
	if !hmac.Equal([]byte(expected), []byte(sig.V1)) {
		return ErrSignatureMismatch
	}
	return nil
}

// ComputeSignature returns the hex HMAC-SHA256 of manifest.
func ComputeSignature(secret, manifest string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}
