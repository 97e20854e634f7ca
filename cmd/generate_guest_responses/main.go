// Command generate_guest_responses writes synthetic guest submissions for
// an event, for load testing and local demos. With -post it submits them
// to a running tablefit server instead.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/testutils"
)

// submission mirrors the body accepted by POST /events/{id}/responses.
type submission struct {
	Name                  string   `json:"name"`
	Email                 string   `json:"email"`
	DietaryRestrictions   []string `json:"dietary_restrictions"`
	PreferredCuisines     []string `json:"preferred_cuisines"`
	AntiPreferredCuisines []string `json:"anti_preferred_cuisines"`
	AcceptablePriceRanges []string `json:"acceptable_price_ranges"`
}

func main() {
	var (
		eventID    = flag.String("event", "demo-event", "Event ID the responses belong to")
		count      = flag.Int("n", 20, "Number of guests to generate")
		seed       = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
		outputPath = flag.String("output", "testdata/guest_responses.json", "Output file path")
		postURL    = flag.String("post", "", "Base URL of a tablefit server to submit to, e.g. http://localhost:8080")
	)
	flag.Parse()

	responses := testutils.GenerateGuestResponses(*eventID, *count, *seed, domain.DefaultVocabulary())
	subs := make([]submission, len(responses))
	for i, r := range responses {
		subs[i] = submission{
			Name:                  r.Name,
			Email:                 r.Email,
			DietaryRestrictions:   r.DietaryRestrictions,
			PreferredCuisines:     r.PreferredCuisines,
			AntiPreferredCuisines: r.AntiPreferredCuisines,
			AcceptablePriceRanges: r.AcceptablePriceRanges,
		}
	}

	if *postURL != "" {
		if err := post(*postURL, *eventID, subs); err != nil {
			log.Fatalf("Failed to submit responses: %v", err)
		}
		fmt.Printf("Submitted %d responses to event %s\n", len(subs), *eventID)
		return
	}

	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode responses: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := os.WriteFile(*outputPath, data, 0o644); err != nil {
		log.Fatalf("Failed to write responses: %v", err)
	}
	fmt.Printf("Wrote %d responses for event %s to %s (seed %d)\n", len(subs), *eventID, *outputPath, *seed)
}

func post(baseURL, eventID string, subs []submission) error {
	client := &http.Client{Timeout: 10 * time.Second}
	url := fmt.Sprintf("%s/events/%s/responses", baseURL, eventID)
	for _, s := range subs {
		body, err := json.Marshal(s)
		if err != nil {
			return err
		}
		resp, err := client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("%s: unexpected status %d", s.Email, resp.StatusCode)
		}
	}
	return nil
}
