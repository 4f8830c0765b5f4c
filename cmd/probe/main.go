// probe posts a few representative events to a running collector so the
// pipeline can be smoke-tested without instrumenting a real client.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

func main() {
	collector := flag.String("collector", "http://127.0.0.1:9432", "collector base URL")
	flag.Parse()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	samples := []map[string]any{
		{
			"ts":     now,
			"phase":  "request",
			"method": "GET",
			"url":    "https://api.example.com/v1/users?limit=10",
			"reqHeaders": map[string]string{
				"Authorization": "Bearer sample-token",
				"Accept":        "application/json",
			},
			"service": "probe",
			"runtime": "cli",
		},
		{
			"ts":         now,
			"phase":      "response",
			"method":     "GET",
			"url":        "https://api.example.com/v1/users?limit=10",
			"status":     200,
			"durationMs": 42,
			"resHeaders": map[string]string{
				"Content-Type": "application/json",
				"Set-Cookie":   "session=abc123",
			},
			"responseBody": map[string]any{"users": []string{"alice", "bob"}},
			"service":      "probe",
			"runtime":      "cli",
		},
		{
			"ts":           now,
			"phase":        "error",
			"method":       "POST",
			"url":          "https://api.example.com/v1/orders",
			"errorMessage": "connect ECONNREFUSED",
			"service":      "probe",
			"runtime":      "cli",
		},
	}

	client := &http.Client{Timeout: 5 * time.Second}
	for _, sample := range samples {
		body, _ := json.Marshal(sample)
		resp, err := client.Post(*collector+"/events", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("post failed: %v", err)
		}
		var result struct {
			ID      int64  `json:"id"`
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			log.Fatalf("decode response: %v", err)
		}
		resp.Body.Close()
		if result.Error != "" {
			log.Fatalf("collector rejected %s event: %s", sample["phase"], result.Error)
		}
		fmt.Printf("ingested %s event id=%d\n", sample["phase"], result.ID)
	}
}
