package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pump-signals/internal/classifier"
	"pump-signals/internal/dedup"
	"pump-signals/internal/filter"
	"pump-signals/internal/pipeline"
	"pump-signals/internal/signalgen"
	"pump-signals/internal/storage/memory"
	"pump-signals/internal/tracker"
)

const mintA = "5yLVLPAftrteKiVQ29TsiXDyoP13svKYLKGFBgz6pump"

func newTestServer(t *testing.T, authSecret string) (*httptest.Server, *memory.SignalStore) {
	t.Helper()
	log := zerolog.Nop()
	store := memory.NewSignalStore()

	proc := pipeline.NewProcessor(pipeline.Config{
		Dedup:      dedup.New(0),
		Classifier: classifier.New(log),
		Chain:      filter.DefaultChain(filter.DefaultThresholds()),
		Generator:  signalgen.New(store, decimal.RequireFromString("0.5"), log),
		Tracker:    tracker.New(store, 0, log),
		Logger:     log,
	})

	srv := httptest.NewServer(NewServer(proc, authSecret, "dry-run", log).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func swapTxJSON(sig string) string {
	var native strings.Builder
	for i := 0; i < 20; i++ {
		if i > 0 {
			native.WriteString(",")
		}
		native.WriteString(`{"amount": 1000000000}`)
	}
	return fmt.Sprintf(`{
		"signature": %q,
		"type": "SWAP",
		"source": "PUMP_FUN",
		"slot": 100,
		"timestamp": 1700000000,
		"tokenTransfers": [{"mint": %q, "tokenAmount": 1000}],
		"nativeTransfers": [%s]
	}`, sig, mintA, native.String())
}

func TestWebhook_BareArrayPayload(t *testing.T) {
	srv, store := newTestServer(t, "")

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader("["+swapTxJSON("tx1")+"]"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Signals int    `json:"signals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Signals != 1 {
		t.Errorf("body = %+v", body)
	}

	signals, _ := store.GetByToken(context.Background(), mintA)
	if len(signals) != 1 {
		t.Fatalf("stored %d signals", len(signals))
	}
}

func TestWebhook_WrappedPayload(t *testing.T) {
	srv, _ := newTestServer(t, "")

	payload := `{"transactions": [` + swapTxJSON("tx1") + `]}`
	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Processed int `json:"processed"`
		Signals   int `json:"signals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Processed != 1 || body.Signals != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestWebhook_MalformedPayload(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhook_SingleBadItemDoesNotFailDelivery(t *testing.T) {
	srv, store := newTestServer(t, "")

	// An irrelevant transaction next to a good one: still a 200.
	payload := `[{"signature": "txX", "source": "RAYDIUM", "type": "SWAP"}, ` + swapTxJSON("tx1") + `]`
	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	signals, _ := store.GetByToken(context.Background(), mintA)
	if len(signals) != 1 {
		t.Fatalf("stored %d signals", len(signals))
	}
}

func TestWebhook_AuthSecret(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret")

	// Missing header.
	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader("[]"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	// Correct header.
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/webhook", strings.NewReader("[]"))
	req.Header.Set("Authorization", "s3cret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST with auth: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" || body["mode"] != "dry-run" {
		t.Errorf("body = %v", body)
	}
}

func TestHeliusClient_CreateListDelete(t *testing.T) {
	var deleted string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api-key") != "key123" {
			t.Errorf("missing api-key param")
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/webhooks":
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			if req["webhookType"] != "enhanced" {
				t.Errorf("webhookType = %v", req["webhookType"])
			}
			addrs, _ := req["accountAddresses"].([]any)
			if len(addrs) != 1 || addrs[0] != PumpFunProgram {
				t.Errorf("accountAddresses = %v", req["accountAddresses"])
			}
			json.NewEncoder(w).Encode(HeliusWebhook{WebhookID: "wh-1", WebhookURL: req["webhookURL"].(string)})
		case r.Method == http.MethodGet && r.URL.Path == "/webhooks":
			json.NewEncoder(w).Encode([]HeliusWebhook{{WebhookID: "wh-1"}})
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/webhooks/"):
			deleted = strings.TrimPrefix(r.URL.Path, "/webhooks/")
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer api.Close()

	ctx := context.Background()
	client := NewHeliusClient("key123").WithBaseURL(api.URL)

	created, err := client.CreateWebhook(ctx, "https://example.com/webhook", "auth")
	if err != nil {
		t.Fatalf("CreateWebhook: %v", err)
	}
	if created.WebhookID != "wh-1" {
		t.Errorf("id = %q", created.WebhookID)
	}

	hooks, err := client.ListWebhooks(ctx)
	if err != nil || len(hooks) != 1 {
		t.Fatalf("ListWebhooks: %v (%d)", err, len(hooks))
	}

	if err := client.DeleteWebhook(ctx, "wh-1"); err != nil {
		t.Fatalf("DeleteWebhook: %v", err)
	}
	if deleted != "wh-1" {
		t.Errorf("deleted = %q", deleted)
	}
}

func TestHeliusClient_RequiresAPIKey(t *testing.T) {
	client := NewHeliusClient("")
	if _, err := client.ListWebhooks(context.Background()); err == nil {
		t.Fatal("expected error without api key")
	}
}
