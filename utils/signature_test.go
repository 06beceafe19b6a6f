package utils

import "testing"

func TestSignAndVerify(t *testing.T) {
	secret := "webhook-secret"
	body := []byte(`{"payment_id":7,"status":"completed"}`)

	sig := SignPayload(secret, body)
	if sig == "" {
		t.Fatal("empty signature")
	}
	if !VerifySignature(secret, body, sig) {
		t.Error("valid signature rejected")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	secret := "webhook-secret"
	body := []byte(`{"payment_id":7,"status":"completed"}`)
	sig := SignPayload(secret, body)

	if VerifySignature(secret, []byte(`{"payment_id":8,"status":"completed"}`), sig) {
		t.Error("signature verified over a different body")
	}
	if VerifySignature("other-secret", body, sig) {
		t.Error("signature verified under a different secret")
	}
	if VerifySignature(secret, body, sig[:len(sig)-2]) {
		t.Error("truncated signature accepted")
	}
	if VerifySignature(secret, body, "") {
		t.Error("empty signature accepted")
	}
}

func TestSignatureIsDeterministic(t *testing.T) {
	secret := "s"
	body := []byte("payload")
	if SignPayload(secret, body) != SignPayload(secret, body) {
		t.Error("signature is not deterministic")
	}
}
