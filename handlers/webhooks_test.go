package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := logging.InitLogger(false); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func webhookRouter(cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.POST("/webhooks/payment", PaymentWebhook(cfg))
	return r
}

func postWebhook(r *gin.Engine, body []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("X-Webhook-Signature", sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPaymentWebhookRejectsMissingSignature(t *testing.T) {
	cfg := &config.Config{PaymentWebhookSecret: "hook-secret"}
	r := webhookRouter(cfg)

	w := postWebhook(r, []byte(`{"payment_id":1,"status":"completed"}`), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unsigned webhook status = %d, want 401", w.Code)
	}
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	cfg := &config.Config{PaymentWebhookSecret: "hook-secret"}
	r := webhookRouter(cfg)

	body := []byte(`{"payment_id":1,"status":"completed","external_txn_id":"t1"}`)
	sig := utils.SignPayload("wrong-secret", body)
	w := postWebhook(r, body, sig)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("mis-signed webhook status = %d, want 401", w.Code)
	}
}

func TestPaymentWebhookRejectsTamperedBody(t *testing.T) {
	cfg := &config.Config{PaymentWebhookSecret: "hook-secret"}
	r := webhookRouter(cfg)

	sig := utils.SignPayload("hook-secret", []byte(`{"payment_id":1,"status":"completed"}`))
	w := postWebhook(r, []byte(`{"payment_id":2,"status":"completed"}`), sig)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("tampered webhook status = %d, want 401", w.Code)
	}
}

// The bridge signs with X-MT5-Signature; a valid signature carried in the
// payment gateway's header name must not pass.
func TestMT5WebhookVerifiesBridgeHeader(t *testing.T) {
	cfg := &config.Config{MT5WebhookSecret: "bridge-secret"}
	r := gin.New()
	r.POST("/webhooks/mt5", MT5Webhook(cfg))

	body := []byte(`{"login":12345,"event":"trade_closed"}`)
	sig := utils.SignPayload("bridge-secret", body)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mt5", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", sig)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong-header webhook status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/mt5", bytes.NewReader(body))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unsigned webhook status = %d, want 401", w.Code)
	}
}

func TestPaymentWebhookRejectsMalformedEvent(t *testing.T) {
	cfg := &config.Config{PaymentWebhookSecret: "hook-secret"}
	r := webhookRouter(cfg)

	for _, body := range [][]byte{
		[]byte(`not json`),
		[]byte(`{"status":"completed"}`),
		[]byte(`{"payment_id":1,"status":"sideways"}`),
		[]byte(`{"payment_id":1,"status":"completed"}`), // missing external_txn_id
	} {
		sig := utils.SignPayload("hook-secret", body)
		w := postWebhook(r, body, sig)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}
