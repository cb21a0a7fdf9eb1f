package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/m3rciful/agrobot/core/logger"
	"github.com/m3rciful/agrobot/internal/domain"
)

// LLMConfig configures the OpenAI-compatible model adapters. BaseURL allows
// pointing at gateways like OpenRouter; Referer and Title become the
// HTTP-Referer / X-Title headers some gateways expect.
type LLMConfig struct {
	APIKey         string `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	BaseURL        string `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	Model          string `yaml:"model" envconfig:"OPENAI_MODEL"`
	FallbackModel  string `yaml:"fallback_model" envconfig:"OPENAI_FALLBACK_MODEL"`
	VisionModel    string `yaml:"vision_model" envconfig:"OPENAI_VISION_MODEL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"OPENAI_TIMEOUT_SECONDS"`
	Referer        string `yaml:"referer" envconfig:"OPENAI_REFERER"`
	Title          string `yaml:"title" envconfig:"OPENAI_TITLE"`
}

// Normalize fills defaults in place.
func (c *LLMConfig) Normalize() {
	if c.Model == "" {
		c.Model = "gpt-4.1-mini"
	}
	if c.VisionModel == "" {
		c.VisionModel = c.Model
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 45
	}
}

func newOpenAIClient(cfg LLMConfig) *openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithRequestTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.Referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.Referer))
	}
	if cfg.Title != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.Title))
	}
	client := openai.NewClient(opts...)
	return &client
}

// AdvisoryClient generates structured crop advisories via chat completions.
type AdvisoryClient struct {
	cfg    LLMConfig
	client *openai.Client
}

// NewAdvisoryClient builds the adapter.
func NewAdvisoryClient(cfg LLMConfig) *AdvisoryClient {
	cfg.Normalize()
	return &AdvisoryClient{cfg: cfg, client: newOpenAIClient(cfg)}
}

// AdviseRequest is the orchestrator's view of one advisory question.
// Weather and Web are the compact session notes, not full snapshots.
type AdviseRequest struct {
	Profile   *domain.Farmer
	Symptoms  string
	Diagnosis *domain.Diagnosis
	Weather   *domain.WeatherNote
	Web       *domain.WebNote
	Language  domain.Language
}

const adviseSystemPrompt = `You are a crop advisory assistant for small farmers.
Return ONLY a valid JSON object matching the given schema. No markdown.
Be practical, stage-aware, and safe.
NEVER provide pesticide dosage/mixing ratios or guaranteed outcomes.
If risk is high, recommend consulting a local agriculture officer/extension worker.
Keep actions short and feasible.`

const adviseSchema = `{
  "headline": "string, <= 120 chars",
  "actions_now": ["3-7 short bullet items"],
  "watch_out_for": ["2-5 items"],
  "next_questions": ["0-3 items, only if truly needed"],
  "rationale_brief": "string, <= 600 chars",
  "confidence": "low | medium | high",
  "safety_notes": ["safety disclaimers and escalation notes"],
  "needs_human_review": false
}`

// Advise produces an advisory for the request, trying the primary model and
// then the fallback model. The returned advisory is clamped to the shape
// limits but not guardrail-filtered; that is the orchestrator's job.
func (c *AdvisoryClient) Advise(ctx context.Context, req AdviseRequest) (*domain.Advisory, error) {
	user := buildAdvisePrompt(req)

	models := []string{c.cfg.Model}
	if c.cfg.FallbackModel != "" && c.cfg.FallbackModel != c.cfg.Model {
		models = append(models, c.cfg.FallbackModel)
	}

	var lastErr error
	for _, model := range models {
		messages := []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(adviseSystemPrompt),
			openai.UserMessage(user),
		}
		var adv domain.Advisory
		if err := completeJSON(ctx, c.client, model, messages, 0.25, &adv); err != nil {
			lastErr = err
			logger.LLM.Warn("advisory model failed",
				"event", "llm.advise",
				"status", "fallback",
				"model", model,
				"err", logger.SanitizeLimit(err.Error(), 256),
			)
			continue
		}
		adv.Confidence = domain.ParseConfidence(string(adv.Confidence))
		adv.Clamp()
		if req.Profile != nil {
			adv.Stage = req.Profile.Stage
		}
		logger.LLM.Info("advisory generated",
			"event", "llm.advise",
			"status", "ok",
			"model", model,
			"confidence", string(adv.Confidence),
		)
		return &adv, nil
	}
	return nil, toolErr("advisory", lastErr)
}

func buildAdvisePrompt(req AdviseRequest) string {
	var b strings.Builder
	b.WriteString("Advisory JSON schema:\n")
	b.WriteString(adviseSchema)
	b.WriteString("\n\nFarmer context:\n")
	b.WriteString(marshalContext(req.Profile))
	if req.Symptoms != "" {
		b.WriteString("\n\nReported symptoms:\n")
		b.WriteString(req.Symptoms)
	}
	if req.Diagnosis != nil {
		fmt.Fprintf(&b, "\n\nPhoto diagnosis (confidence %.2f):\n%s — %s",
			req.Diagnosis.Confidence, req.Diagnosis.Label, req.Diagnosis.Advice)
	}
	if req.Weather != nil {
		b.WriteString("\n\nWeather:\n")
		b.WriteString(req.Weather.Summary)
		if len(req.Weather.Alerts) > 0 {
			b.WriteString("\nAlerts: ")
			b.WriteString(strings.Join(req.Weather.Alerts, ", "))
		}
	}
	if req.Web != nil && len(req.Web.Snippets) > 0 {
		b.WriteString("\n\nWeb context:\n")
		for _, s := range req.Web.Snippets[:min(len(req.Web.Snippets), 5)] {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "\nGenerate the Advisory. Write every user-facing string in %s.", languageName(req.Language))
	return b.String()
}

func marshalContext(f *domain.Farmer) string {
	if f == nil {
		return "{}"
	}
	ctx := map[string]any{
		"crop":  f.Crop,
		"stage": string(f.Stage),
	}
	if f.LocationText != "" {
		ctx["location"] = f.LocationText
	}
	if f.LandSize != nil {
		ctx["land"] = fmt.Sprintf("%g %s", *f.LandSize, f.LandUnit)
	}
	if f.SowingDate != nil {
		ctx["sowing_date"] = f.SowingDate.Format("2006-01-02")
	}
	raw, err := json.Marshal(ctx)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// completeJSON asks for strict JSON and repairs lightly by extracting the
// first top-level object. Two parse attempts per model.
func completeJSON(ctx context.Context, client *openai.Client, model string, messages []openai.ChatCompletionMessageParamUnion, temperature float64, out any) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       openai.ChatModel(model),
			Messages:    messages,
			Temperature: openai.Float(temperature),
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("empty completion")
			continue
		}
		raw := firstJSONObject(resp.Choices[0].Message.Content)
		if raw == "" {
			lastErr = errors.New("completion carried no JSON object")
			continue
		}
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// firstJSONObject extracts the outermost {...} span from model output that
// may be wrapped in prose or code fences.
func firstJSONObject(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func languageName(l domain.Language) string {
	switch l {
	case domain.LangHindi:
		return "Hindi"
	case domain.LangMarathi:
		return "Marathi"
	default:
		return "English"
	}
}
