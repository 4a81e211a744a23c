// Package gemini invokes the Gemini generateContent API as the policy
// oracle, declaring the four trading tools and requesting thought parts
// for the audit trail.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/Official-Krish/ai-trading-zerodha/internal/oracle"
	"github.com/Official-Krish/ai-trading-zerodha/internal/store"
	"github.com/Official-Krish/ai-trading-zerodha/internal/trace"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type Invoker struct {
	model          string
	thinkingBudget int
	baseURL        string
	httpc          *http.Client
}

// NewInvoker builds the Gemini policy invoker. The endpoint can be
// overridden with GEMINI_API_ENDPOINT (proxies, test servers).
func NewInvoker(cfg *store.Config) *Invoker {
	baseURL := defaultBaseURL
	if ep := os.Getenv("GEMINI_API_ENDPOINT"); ep != "" {
		baseURL = strings.TrimRight(ep, "/")
	}
	return &Invoker{
		model:          cfg.LLM.Model,
		thinkingBudget: cfg.LLM.ThinkingBudget,
		baseURL:        baseURL,
		httpc:          &http.Client{Timeout: cfg.CallTimeout()},
	}
}

type schemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type schema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

type functionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *schema `json:"parameters,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	Tools            []toolSet         `json:"tools"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text         string              `json:"text,omitempty"`
	Thought      bool                `json:"thought,omitempty"`
	FunctionCall *types.FunctionCall `json:"functionCall,omitempty"`
}

type toolSet struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type generationConfig struct {
	ThinkingConfig *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget"`
	IncludeThoughts bool `json:"includeThoughts"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Invoke sends the prompt plus tool schema in a single non-streaming call
// and parses the response into rationale text and the first function call.
func (d *Invoker) Invoke(ctx context.Context, prompt string) (types.OracleResult, error) {
	ctx, span := trace.StartSpan(ctx, "gemini-api-call")
	defer span.End()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_GENAI_API_KEY")
	}
	if apiKey == "" {
		return types.OracleResult{}, &types.OracleCallError{Err: errors.New("GEMINI_API_KEY missing")}
	}

	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		Tools:    []toolSet{{FunctionDeclarations: toolDeclarations()}},
		GenerationConfig: &generationConfig{
			ThinkingConfig: &thinkingConfig{
				ThinkingBudget:  d.thinkingBudget,
				IncludeThoughts: true,
			},
		},
	}
	bb, err := json.Marshal(reqBody)
	if err != nil {
		return types.OracleResult{}, &types.OracleCallError{Err: err}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", d.baseURL, d.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bb))
	if err != nil {
		return types.OracleResult{}, &types.OracleCallError{Err: err}
	}
	req.Header.Set("x-goog-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpc.Do(req)
	if err != nil {
		return types.OracleResult{}, &types.OracleCallError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return types.OracleResult{}, &types.OracleCallError{
			Err: fmt.Errorf("gemini http %d: %s", resp.StatusCode, string(body)),
		}
	}

	var r generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return types.OracleResult{}, &types.OracleCallError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(r.Candidates) == 0 {
		return types.OracleResult{}, &types.OracleCallError{Err: errors.New("no candidates in response")}
	}

	return collect(r.Candidates[0].Content.Parts), nil
}

// collect splits response parts into thought text, plain text, and the
// first function call. Extra calls are counted but ignored by policy.
func collect(parts []part) types.OracleResult {
	var res types.OracleResult
	var thoughts, texts []string

	for _, p := range parts {
		if p.FunctionCall != nil {
			if res.Call == nil {
				fc := *p.FunctionCall
				res.Call = &fc
			} else {
				res.ExtraCalls++
			}
			continue
		}
		if p.Text == "" {
			continue
		}
		if p.Thought {
			thoughts = append(thoughts, p.Text)
		} else {
			texts = append(texts, p.Text)
		}
	}

	res.Rationale = strings.Join(thoughts, "\n\n")
	res.Text = strings.Join(texts, "\n")
	return res
}

func toolDeclarations() []functionDeclaration {
	tradeParams := func(verb string) *schema {
		return &schema{
			Type: "OBJECT",
			Properties: map[string]schemaProperty{
				"exchange": {Type: "STRING", Description: fmt.Sprintf("The exchange to %s the stock on.", verb)},
				"symbol":   {Type: "STRING", Description: fmt.Sprintf("The stock symbol to %s.", verb)},
				"quantity": {Type: "NUMBER", Description: fmt.Sprintf("The number of shares to %s.", verb)},
			},
			Required: []string{"symbol", "quantity", "exchange"},
		}
	}

	return []functionDeclaration{
		{
			Name:        oracle.ToolBuyStock,
			Description: "Buys a specified quantity of a stock.",
			Parameters:  tradeParams("buy"),
		},
		{
			Name:        oracle.ToolSellStock,
			Description: "Sells a specified quantity of a stock.",
			Parameters:  tradeParams("sell"),
		},
		{
			Name:        oracle.ToolHoldStock,
			Description: "Hold the current position of a stock.",
		},
		{
			Name:        oracle.ToolNoIdealStock,
			Description: "Indicates that there are no ideal stocks to trade at the moment.",
		},
	}
}
