package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, analysis AnalysisReader, market MarketReader) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "coins_list",
		Description: "List the coin symbols tracked by the signal pipeline",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ coinsListInput) (*mcp.CallToolResult, coinsListOutput, error) {
		if analysis == nil {
			return nil, coinsListOutput{}, fmt.Errorf("analysis service unavailable")
		}
		return nil, coinsListOutput{Coins: analysis.Symbols()}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "coin_analyze",
		Description: "Run or fetch the cached fused analysis for one tracked coin",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in coinAnalyzeInput) (*mcp.CallToolResult, coinAnalyzeOutput, error) {
		if analysis == nil {
			return nil, coinAnalyzeOutput{}, fmt.Errorf("analysis service unavailable")
		}
		symbol, err := normalizeSymbol(analysis, in.Symbol)
		if err != nil {
			return nil, coinAnalyzeOutput{}, err
		}
		result, err := analysis.Analyze(ctx, symbol)
		if err != nil {
			return nil, coinAnalyzeOutput{}, err
		}
		return nil, coinAnalyzeOutput{Analysis: result}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "signals_list_cached",
		Description: "List cached signal summaries with optional class and confidence filters",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in signalsListCachedInput) (*mcp.CallToolResult, signalsListCachedOutput, error) {
		if analysis == nil {
			return nil, signalsListCachedOutput{}, fmt.Errorf("analysis service unavailable")
		}
		filter, err := normalizeSignalFilter(in)
		if err != nil {
			return nil, signalsListCachedOutput{}, err
		}
		return nil, signalsListCachedOutput{Signals: filter.apply(analysis.CachedSignals(ctx))}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rate_limits_status",
		Description: "Show token bucket state for every upstream data source",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ rateLimitsStatusInput) (*mcp.CallToolResult, rateLimitsStatusOutput, error) {
		if analysis == nil {
			return nil, rateLimitsStatusOutput{}, fmt.Errorf("analysis service unavailable")
		}
		return nil, rateLimitsStatusOutput{Sources: analysis.RateLimits()}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "market_overview",
		Description: "Get total market cap, BTC dominance, fear & greed and top movers",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ marketOverviewInput) (*mcp.CallToolResult, marketOverviewOutput, error) {
		if market == nil {
			return nil, marketOverviewOutput{}, fmt.Errorf("market service unavailable")
		}
		overview, err := market.Overview(ctx)
		if err != nil {
			return nil, marketOverviewOutput{}, err
		}
		return nil, marketOverviewOutput{Overview: overview}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "morning_brief",
		Description: "Get the morning brief: market status, BTC/ETH/SOL calls, risk level and fear & greed",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ morningBriefInput) (*mcp.CallToolResult, morningBriefOutput, error) {
		if market == nil {
			return nil, morningBriefOutput{}, fmt.Errorf("market service unavailable")
		}
		brief, err := market.MorningBrief(ctx)
		if err != nil {
			return nil, morningBriefOutput{}, err
		}
		return nil, morningBriefOutput{Brief: brief}, nil
	})
}
