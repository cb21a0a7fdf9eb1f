package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/m3rciful/agrobot/core/logger"
	"github.com/m3rciful/agrobot/internal/domain"
)

// DiagnosisClient identifies crop problems from photos via a vision-capable
// chat completion. When the vision call fails it retries text-only over the
// caption before giving up.
type DiagnosisClient struct {
	cfg    LLMConfig
	client *openai.Client
}

// NewDiagnosisClient builds the adapter.
func NewDiagnosisClient(cfg LLMConfig) *DiagnosisClient {
	cfg.Normalize()
	return &DiagnosisClient{cfg: cfg, client: newOpenAIClient(cfg)}
}

// DiagnoseRequest describes one photo submission.
type DiagnoseRequest struct {
	PhotoURL string
	Caption  string
	Crop     string
	Stage    domain.Stage
	Language domain.Language
}

const diagnoseSystemPrompt = `You diagnose crop problems from a farmer's photo and note.
Return ONLY a valid JSON object: {"label": "short problem name", "advice": "2-3 sentences of safe, practical guidance", "confidence": 0.0-1.0}.
No markdown. NEVER include pesticide dosage or mixing ratios.
If the image is unclear, say so in the label and keep confidence low.`

// Diagnose returns a label, short advice and the model's own confidence in
// [0,1]. Vision over the photo URL first, caption-only text second.
func (c *DiagnosisClient) Diagnose(ctx context.Context, req DiagnoseRequest) (*domain.Diagnosis, error) {
	note := buildDiagnoseNote(req)

	var lastErr error
	if req.PhotoURL != "" {
		parts := []openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(note),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: req.PhotoURL}),
		}
		messages := []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(diagnoseSystemPrompt),
			openai.UserMessage(parts),
		}
		diag, err := c.complete(ctx, c.cfg.VisionModel, messages)
		if err == nil {
			return diag, nil
		}
		lastErr = err
		logger.DIAG.Warn("vision diagnosis failed, trying caption only",
			"event", "diagnosis.photo",
			"status", "fallback",
			"model", c.cfg.VisionModel,
			"err", logger.SanitizeLimit(err.Error(), 256),
		)
	}

	if strings.TrimSpace(req.Caption) != "" || req.Crop != "" {
		messages := []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(diagnoseSystemPrompt),
			openai.UserMessage(note + "\n(No image available; diagnose from the note alone.)"),
		}
		diag, err := c.complete(ctx, c.cfg.Model, messages)
		if err == nil {
			return diag, nil
		}
		lastErr = err
	}

	logger.DIAG.Error("diagnosis chain exhausted",
		"event", "diagnosis.photo",
		"status", "fail",
		"err", logger.SanitizeLimit(fmt.Sprint(lastErr), 256),
	)
	return nil, toolErr("diagnosis", lastErr)
}

func (c *DiagnosisClient) complete(ctx context.Context, model string, messages []openai.ChatCompletionMessageParamUnion) (*domain.Diagnosis, error) {
	var diag domain.Diagnosis
	if err := completeJSON(ctx, c.client, model, messages, 0.2, &diag); err != nil {
		return nil, err
	}
	diag.Label = strings.TrimSpace(diag.Label)
	diag.Advice = strings.TrimSpace(diag.Advice)
	if diag.Confidence < 0 {
		diag.Confidence = 0
	}
	if diag.Confidence > 1 {
		diag.Confidence = 1
	}
	logger.DIAG.Info("diagnosis ok",
		"event", "diagnosis.photo",
		"status", "ok",
		"model", model,
		"confidence", fmt.Sprintf("%.2f", diag.Confidence),
	)
	return &diag, nil
}

func buildDiagnoseNote(req DiagnoseRequest) string {
	var b strings.Builder
	if req.Crop != "" {
		fmt.Fprintf(&b, "Crop: %s.", req.Crop)
	}
	if req.Stage != "" {
		fmt.Fprintf(&b, " Stage: %s.", req.Stage)
	}
	if strings.TrimSpace(req.Caption) != "" {
		fmt.Fprintf(&b, " Farmer's note: %s", strings.TrimSpace(req.Caption))
	}
	if b.Len() == 0 {
		b.WriteString("No extra context from the farmer.")
	}
	fmt.Fprintf(&b, " Reply with user-facing text in %s.", languageName(req.Language))
	return b.String()
}
