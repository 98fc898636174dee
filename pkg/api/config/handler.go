package config

import (
	"encoding/json"
	"net/http"

	coreConfig "financial_lookup/pkg/core/config"
)

// Response describes the running configuration without secrets.
type Response struct {
	FiscalYear   int      `json:"fiscal_year"`
	LLMProvider  string   `json:"llm_provider,omitempty"`
	LLMModel     string   `json:"llm_model,omitempty"`
	Available    []string `json:"available_providers"`
	Features     Features `json:"features"`
	SECUserAgent string   `json:"sec_user_agent"`
	Catalogue    string   `json:"catalogue"`
}

// Features reports which optional integrations have credentials.
type Features struct {
	Analysis    bool `json:"analysis"`
	MarketData  bool `json:"market_data"`
	News        bool `json:"news"`
	SharedCache bool `json:"shared_cache"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	Cfg *coreConfig.Config
}

// NewHandler creates a new config handler
func NewHandler(cfg *coreConfig.Config) *Handler {
	return &Handler{Cfg: cfg}
}

// Describe builds the redacted view of cfg.
func Describe(cfg *coreConfig.Config) Response {
	resp := Response{
		FiscalYear:   cfg.Report.FiscalYear,
		Available:    []string{"gemini", "openrouter"},
		SECUserAgent: cfg.SEC.UserAgent,
		Catalogue:    "built-in",
		Features: Features{
			Analysis:    cfg.LLM.APIKey != "",
			MarketData:  cfg.Market.APIKey != "",
			News:        cfg.News.APIKey != "",
			SharedCache: cfg.Cache.DatabaseURL != "",
		},
	}
	if cfg.Report.CataloguePath != "" {
		resp.Catalogue = cfg.Report.CataloguePath
	}
	if resp.Features.Analysis {
		resp.LLMProvider = cfg.LLM.Provider
		resp.LLMModel = cfg.LLM.Model
	}
	return resp
}

// HandleConfig handles GET /api/config
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers for local dev
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Describe(h.Cfg))
}
