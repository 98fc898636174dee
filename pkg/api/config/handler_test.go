package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	coreConfig "financial_lookup/pkg/core/config"
)

func TestHandleConfig_Redacted(t *testing.T) {
	cfg := coreConfig.Default()
	cfg.Report.FiscalYear = 2024
	cfg.LLM.APIKey = "llm-secret"
	cfg.Market.APIKey = "av-secret"

	rec := httptest.NewRecorder()
	NewHandler(cfg).HandleConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Fatalf("response leaks a key: %s", rec.Body)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.FiscalYear != 2024 || resp.LLMProvider != "gemini" || resp.Catalogue != "built-in" {
		t.Errorf("resp = %+v", resp)
	}
	want := Features{Analysis: true, MarketData: true}
	if resp.Features != want {
		t.Errorf("features = %+v, want %+v", resp.Features, want)
	}
}

func TestHandleConfig_Methods(t *testing.T) {
	h := NewHandler(coreConfig.Default())

	rec := httptest.NewRecorder()
	h.HandleConfig(rec, httptest.NewRequest(http.MethodPost, "/api/config", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.HandleConfig(rec, httptest.NewRequest(http.MethodOptions, "/api/config", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS: status = %d", rec.Code)
	}
}

func TestDescribe_NoLLMKeyHidesModel(t *testing.T) {
	resp := Describe(coreConfig.Default())
	if resp.LLMProvider != "" || resp.LLMModel != "" || resp.Features.Analysis {
		t.Errorf("resp = %+v", resp)
	}
}
