package prompt

// PromptIDs contains all known prompt identifiers
var PromptIDs = struct {
	AnalystSummary string
	AnalystVerdict string
}{
	AnalystSummary: "analyst.summary",
	AnalystVerdict: "analyst.verdict",
}

const analystPersona = `You are a senior equity research analyst with thirty years of experience covering large-cap US companies. You hold the CFA charter and write for institutional and sophisticated retail investors.

ANALYSIS STYLE:
- Direct, professional and data-driven
- Balance quantitative metrics with business fundamentals
- Focus on long-term value creation and sustainable growth
- Name the key risks and opportunities

ANALYSIS FRAMEWORK:
1. **Financial Health**: liquidity, solvency, profitability
2. **Growth**: revenue growth, margins, operating efficiency
3. **Balance Sheet Strength**: debt, cash position, working capital
4. **Capital Allocation**: free cash flow and how it is deployed
5. **Valuation Perspective**: whether the metrics suggest over or under valuation
6. **Risk Factors**: business, financial and market risks to monitor

Work only from the figures supplied. If a metric is missing, say so rather than estimating it.`

const summaryTemplate = `Please analyze the following {{.FiscalYear}} SEC EDGAR financial data for {{.CompanyName}} and provide your professional assessment:

{{.Summary}}
Cover the company's current financial health, growth trajectory, competitive position and investment outlook. Focus on what the numbers say about the business fundamentals and management effectiveness.`

const verdictTemplate = `Based on the following {{.FiscalYear}} SEC EDGAR financial data for {{.CompanyName}}, give your verdict.

{{.Summary}}
Return JSON with exactly these fields:
{"rating": "buy" | "hold" | "sell", "thesis": "<one or two sentences>", "strengths": ["..."], "concerns": ["..."]}`

// NewBuiltinRegistry returns a registry holding the default analyst prompts.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	required := []string{"CompanyName", "FiscalYear", "Summary"}
	for _, t := range []*Template{
		{
			ID:       PromptIDs.AnalystSummary,
			System:   analystPersona + "\n\nStructure the answer in markdown with the sections Overview, Strengths, Concerns and Outlook, 300-500 words in total, and close with a clear investment thesis.",
			User:     summaryTemplate,
			Required: required,
			Version:  "1.0",
		},
		{
			ID:       PromptIDs.AnalystVerdict,
			System:   analystPersona + "\n\nRespond with a single JSON object and nothing else.",
			User:     verdictTemplate,
			Required: required,
			Version:  "1.0",
		},
	} {
		if err := r.Register(t); err != nil {
			panic(err) // built-in templates are constant
		}
	}
	return r
}
