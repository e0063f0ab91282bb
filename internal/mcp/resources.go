package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerResources(server *mcp.Server, analysis AnalysisReader, market MarketReader) {
	server.AddResource(&mcp.Resource{
		URI:         "market://tracked-symbols",
		Name:        "tracked-symbols",
		Description: "Coin symbols tracked by the signal pipeline",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if analysis == nil {
			return nil, fmt.Errorf("analysis service unavailable")
		}
		return jsonResource(req.Params.URI, analysis.Symbols())
	})

	server.AddResource(&mcp.Resource{
		URI:         "ratelimits://status",
		Name:        "rate-limits-status",
		Description: "Token bucket state and counters per upstream source",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if analysis == nil {
			return nil, fmt.Errorf("analysis service unavailable")
		}
		return jsonResource(req.Params.URI, rateLimitsStatusOutput{Sources: analysis.RateLimits()})
	})

	server.AddResource(&mcp.Resource{
		URI:         "market://overview",
		Name:        "market-overview",
		Description: "Global market overview with fear & greed and top movers",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if market == nil {
			return nil, fmt.Errorf("market service unavailable")
		}
		overview, err := market.Overview(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, marketOverviewOutput{Overview: overview})
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "analysis://{symbol}",
		Name:        "analysis-by-symbol",
		Description: "Fused analysis for a tracked coin",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if analysis == nil {
			return nil, fmt.Errorf("analysis service unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil || parsed.Scheme != "analysis" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		symbol, err := normalizeSymbol(analysis, parsed.Host)
		if err != nil {
			return nil, err
		}

		result, err := analysis.Analyze(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, coinAnalyzeOutput{Analysis: result})
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "signals://cached{?signal,min_confidence,limit}",
		Name:        "signals-cached",
		Description: "Cached signal summaries with optional signal/min_confidence/limit query params",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if analysis == nil {
			return nil, fmt.Errorf("analysis service unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "signals" || parsed.Host != "cached" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		query := parsed.Query()
		input := signalsListCachedInput{Signal: query.Get("signal")}
		if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid limit: %s", raw)
			}
			input.Limit = n
		}
		if raw := strings.TrimSpace(query.Get("min_confidence")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid min_confidence: %s", raw)
			}
			input.MinConfidence = n
		}

		filter, err := normalizeSignalFilter(input)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, signalsListCachedOutput{Signals: filter.apply(analysis.CachedSignals(ctx))})
	})
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
