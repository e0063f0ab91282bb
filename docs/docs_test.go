package docs

import (
	"encoding/json"
	"testing"

	"github.com/swaggo/swag"
)

func TestSwaggerDocRegistered(t *testing.T) {
	raw, err := swag.ReadDoc()
	if err != nil {
		t.Fatalf("read doc: %v", err)
	}

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths       map[string]any `json:"paths"`
		Definitions map[string]any `json:"definitions"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("doc is not valid json: %v", err)
	}
	if doc.Info.Title != "Signal Pipeline API" {
		t.Fatalf("unexpected title: %q", doc.Info.Title)
	}
	for _, p := range []string{"/", "/health", "/api/coins", "/api/coin/{symbol}", "/api/coin/{symbol}/chart.png", "/api/signals", "/api/market-overview", "/api/morning-brief", "/api/rate-limits"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Fatalf("missing path %s", p)
		}
	}
	if _, ok := doc.Definitions["domain.Analysis"]; !ok {
		t.Fatal("missing analysis definition")
	}
}
