package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Priya8975/billing-reconciler/internal/billing"
)

// Mock billing vendor for local testing: serves the subscription-detail API
// the reconciler calls, and fires signed sample webhooks at it.

var eventCounter atomic.Int64

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	target := os.Getenv("TARGET_URL")
	if target == "" {
		target = "http://localhost:8080/webhooks/billing"
	}

	secret := os.Getenv("WEBHOOK_SECRET")
	if secret == "" {
		secret = "whsec_local_dev"
	}

	// Subscription detail endpoint — always an active monthly subscription
	http.HandleFunc("/v1/subscriptions/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
		now := time.Now().Unix()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":                   id,
			"customer_id":          "cus_mock_1",
			"price_id":             "price_mock_pro",
			"status":               "active",
			"interval":             "month",
			"current_period_start": now,
			"current_period_end":   now + 30*24*3600,
			"cancel_at_period_end": false,
		})
	})

	// Fire a sample webhook: POST /fire/{event type}?user=u1&sub=sub_1&cus=cus_1
	http.HandleFunc("/fire/", func(w http.ResponseWriter, r *http.Request) {
		eventType := strings.TrimPrefix(r.URL.Path, "/fire/")
		n := eventCounter.Add(1)

		q := r.URL.Query()
		data := map[string]interface{}{}
		if v := q.Get("user"); v != "" {
			data["user_id"] = v
		}
		if v := q.Get("sub"); v != "" {
			data["subscription_id"] = v
		}
		if v := q.Get("cus"); v != "" {
			data["customer_id"] = v
		}
		if v := q.Get("status"); v != "" {
			data["status"] = v
		}

		envelope := map[string]interface{}{
			"id":      fmt.Sprintf("evt_mock_%d", n),
			"type":    eventType,
			"created": time.Now().Unix(),
			"data":    data,
		}

		body, err := json.Marshal(envelope)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(billing.SignatureHeader, billing.SignatureFor(body, secret))

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		log.Printf("fired %s -> %d", eventType, resp.StatusCode)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"event_id": envelope["id"],
			"status":   resp.StatusCode,
		})
	})

	// Stats endpoint — shows how many events were fired
	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"events_fired": eventCounter.Load()})
	})

	log.Printf("Mock vendor starting on :%s", port)
	log.Printf("  GET  /v1/subscriptions/{id}  -> subscription detail")
	log.Printf("  POST /fire/{type}            -> send signed webhook to %s", target)
	log.Printf("  GET  /stats                  -> events fired")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
