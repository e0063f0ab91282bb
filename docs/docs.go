// Package docs registers the swagger document for the HTTP API. Keep it in
// sync with the godoc annotations in internal/handler.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "system"
                ],
                "summary": "Service info",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/api/coin/{symbol}": {
            "get": {
                "description": "Returns the fused signal with technical, macro and sentiment layers. Served from cache when fresh.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "signals"
                ],
                "summary": "Analyze a tracked coin",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Asset symbol (e.g., BTC, ETH)",
                        "name": "symbol",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.Analysis"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "/api/coin/{symbol}/chart.png": {
            "get": {
                "description": "PNG with candles, Bollinger bands, EMA20, signal levels, RSI and MACD panels",
                "produces": [
                    "image/png"
                ],
                "tags": [
                    "signals"
                ],
                "summary": "Render a signal chart",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Asset symbol (e.g., BTC, ETH)",
                        "name": "symbol",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    },
                    "501": {
                        "description": "Not Implemented",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "/api/coins": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "signals"
                ],
                "summary": "List tracked coins",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "array",
                                "items": {
                                    "type": "string"
                                }
                            }
                        }
                    }
                }
            }
        },
        "/api/market-overview": {
            "get": {
                "description": "Global market data, top movers and the fear & greed index",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "market"
                ],
                "summary": "Market overview",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.MarketOverview"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "/api/morning-brief": {
            "get": {
                "description": "Market status, BTC/ETH/SOL calls, risk level and the fear & greed index",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "market"
                ],
                "summary": "Morning brief",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/domain.MorningBrief"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "/api/rate-limits": {
            "get": {
                "description": "Tokens, usage and request statistics per upstream source",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "system"
                ],
                "summary": "Admission controller status",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "$ref": "#/definitions/ratelimit.SourceStatus"
                            }
                        }
                    }
                }
            }
        },
        "/api/signals": {
            "get": {
                "description": "Summaries of every tracked coin with a cached analysis. Never calls upstream.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "signals"
                ],
                "summary": "List cached signals",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "array",
                                "items": {
                                    "$ref": "#/definitions/domain.SignalSummary"
                                }
                            }
                        }
                    }
                }
            }
        },
        "/health": {
            "get": {
                "description": "Cache backend statistics and price stream state",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "system"
                ],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/service.HealthStatus"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "cache.Stats": {
            "type": "object",
            "properties": {
                "type": {
                    "type": "string"
                },
                "hits": {
                    "type": "integer"
                },
                "misses": {
                    "type": "integer"
                },
                "keys": {
                    "type": "integer"
                },
                "total_keys": {
                    "type": "integer"
                }
            }
        },
        "domain.EntryZone": {
            "type": "object",
            "properties": {
                "kind": {
                    "type": "string",
                    "enum": [
                        "wait",
                        "range",
                        "market"
                    ]
                },
                "low": {
                    "type": "number"
                },
                "high": {
                    "type": "number"
                },
                "label": {
                    "type": "string"
                }
            }
        },
        "domain.FusedSignal": {
            "type": "object",
            "properties": {
                "coin": {
                    "type": "string"
                },
                "signal": {
                    "type": "string",
                    "enum": [
                        "STRONG_SELL",
                        "SELL",
                        "WEAK_SELL",
                        "HOLD",
                        "WEAK_BUY",
                        "BUY",
                        "STRONG_BUY"
                    ]
                },
                "overall_score": {
                    "type": "integer"
                },
                "confidence": {
                    "type": "integer"
                },
                "technical_score": {
                    "type": "integer"
                },
                "macro_score": {
                    "type": "integer"
                },
                "sentiment_score": {
                    "type": "integer"
                },
                "action": {
                    "type": "string"
                },
                "entry_zone": {
                    "$ref": "#/definitions/domain.EntryZone"
                },
                "targets": {
                    "type": "array",
                    "items": {
                        "type": "number"
                    }
                },
                "stop_loss": {
                    "type": "number"
                },
                "position_size_pct": {
                    "type": "number"
                },
                "timeframe": {
                    "type": "string"
                },
                "timestamp": {
                    "type": "string"
                }
            }
        },
        "domain.IndicatorBundle": {
            "type": "object",
            "properties": {
                "current_price": {
                    "type": "number"
                },
                "rsi": {
                    "type": "number"
                },
                "rsi_signal": {
                    "type": "string"
                },
                "macd": {
                    "type": "number"
                },
                "macd_signal_line": {
                    "type": "number"
                },
                "macd_histogram": {
                    "type": "number"
                },
                "macd_signal": {
                    "type": "string"
                },
                "bb_upper": {
                    "type": "number"
                },
                "bb_middle": {
                    "type": "number"
                },
                "bb_lower": {
                    "type": "number"
                },
                "bb_signal": {
                    "type": "string"
                },
                "ema_20": {
                    "type": "number"
                },
                "ema_50": {
                    "type": "number"
                },
                "ema_200": {
                    "type": "number"
                },
                "trend": {
                    "type": "string"
                },
                "volume_ratio": {
                    "type": "number"
                },
                "technical_score": {
                    "type": "integer"
                }
            }
        },
        "domain.MacroContext": {
            "type": "object",
            "properties": {
                "dxy": {
                    "type": "number"
                },
                "dxy_trend": {
                    "type": "string"
                },
                "vix": {
                    "type": "number"
                },
                "fed_funds_rate": {
                    "type": "number"
                },
                "fear_greed_index": {
                    "type": "number"
                },
                "market_phase": {
                    "type": "string"
                }
            }
        },
        "domain.SentimentResult": {
            "type": "object",
            "properties": {
                "coin": {
                    "type": "string"
                },
                "rating": {
                    "type": "string",
                    "enum": [
                        "STRONG_SELL",
                        "SELL",
                        "WEAK_SELL",
                        "HOLD",
                        "WEAK_BUY",
                        "BUY",
                        "STRONG_BUY"
                    ]
                },
                "confidence": {
                    "type": "integer"
                },
                "timeframe": {
                    "type": "string"
                },
                "entry_zone_low": {
                    "type": "number"
                },
                "entry_zone_high": {
                    "type": "number"
                },
                "target_conservative": {
                    "type": "number"
                },
                "target_aggressive": {
                    "type": "number"
                },
                "stop_loss": {
                    "type": "number"
                },
                "risk_reward_ratio": {
                    "type": "number"
                },
                "position_size_pct": {
                    "type": "number"
                },
                "reasoning": {
                    "type": "string"
                },
                "key_factors": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "risks": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "timestamp": {
                    "type": "string"
                }
            }
        },
        "domain.Ticker": {
            "type": "object",
            "properties": {
                "symbol": {
                    "type": "string"
                },
                "price": {
                    "type": "number"
                },
                "change_24h": {
                    "type": "number"
                },
                "volume_24h": {
                    "type": "number"
                },
                "high_24h": {
                    "type": "number"
                },
                "low_24h": {
                    "type": "number"
                },
                "timestamp": {
                    "type": "string"
                }
            }
        },
        "domain.Analysis": {
            "type": "object",
            "properties": {
                "coin": {
                    "type": "string"
                },
                "price": {
                    "$ref": "#/definitions/domain.Ticker"
                },
                "technical": {
                    "$ref": "#/definitions/domain.IndicatorBundle"
                },
                "macro": {
                    "$ref": "#/definitions/domain.MacroContext"
                },
                "ai_analysis": {
                    "$ref": "#/definitions/domain.SentimentResult"
                },
                "signal": {
                    "$ref": "#/definitions/domain.FusedSignal"
                },
                "generated_at": {
                    "type": "string"
                }
            }
        },
        "domain.MarketMover": {
            "type": "object",
            "properties": {
                "symbol": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "change_24h": {
                    "type": "number"
                },
                "price": {
                    "type": "number"
                }
            }
        },
        "domain.MarketOverview": {
            "type": "object",
            "properties": {
                "total_market_cap": {
                    "type": "number"
                },
                "btc_dominance": {
                    "type": "number"
                },
                "market_cap_change_24h": {
                    "type": "number"
                },
                "fear_greed_index": {
                    "type": "number"
                },
                "top_gainers": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/domain.MarketMover"
                    }
                },
                "top_losers": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/domain.MarketMover"
                    }
                }
            }
        },
        "domain.MorningBrief": {
            "type": "object",
            "properties": {
                "date": {
                    "type": "string"
                },
                "market_status": {
                    "type": "string"
                },
                "top_opportunities": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/domain.Opportunity"
                    }
                },
                "macro_alerts": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "risk_level": {
                    "type": "string"
                },
                "fear_greed": {
                    "type": "number"
                }
            }
        },
        "domain.Opportunity": {
            "type": "object",
            "properties": {
                "coin": {
                    "type": "string"
                },
                "signal": {
                    "type": "string"
                },
                "confidence": {
                    "type": "integer"
                }
            }
        },
        "domain.SignalSummary": {
            "type": "object",
            "properties": {
                "symbol": {
                    "type": "string"
                },
                "signal": {
                    "type": "string",
                    "enum": [
                        "STRONG_SELL",
                        "SELL",
                        "WEAK_SELL",
                        "HOLD",
                        "WEAK_BUY",
                        "BUY",
                        "STRONG_BUY"
                    ]
                },
                "confidence": {
                    "type": "integer"
                },
                "price": {
                    "type": "number"
                },
                "change_24h": {
                    "type": "number"
                }
            }
        },
        "ratelimit.Stats": {
            "type": "object",
            "properties": {
                "total_requests": {
                    "type": "integer"
                },
                "successful_requests": {
                    "type": "integer"
                },
                "failed_requests": {
                    "type": "integer"
                },
                "total_wait_time": {
                    "type": "number"
                }
            }
        },
        "ratelimit.SourceStatus": {
            "type": "object",
            "properties": {
                "available_tokens": {
                    "type": "number"
                },
                "capacity": {
                    "type": "number"
                },
                "usage_percent": {
                    "type": "number"
                },
                "refill_rate": {
                    "type": "number"
                },
                "stats": {
                    "$ref": "#/definitions/ratelimit.Stats"
                }
            }
        },
        "service.HealthStatus": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string"
                },
                "cache_stats": {
                    "$ref": "#/definitions/cache.Stats"
                },
                "stream_connected": {
                    "type": "boolean"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Signal Pipeline API",
	Description:      "Rate-limited, cache-first crypto signal pipeline.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
