package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/agrobot/internal/domain"
)

type modelCall struct {
	model    string
	hasImage bool
}

// newChatStub serves an OpenAI-compatible /chat/completions endpoint.
// respond maps a model name to the assistant content; empty means HTTP 400.
func newChatStub(t *testing.T, respond map[string]string) (*httptest.Server, *[]modelCall) {
	t.Helper()
	calls := &[]modelCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model string `json:"model"`
		}
		_ = json.Unmarshal(body, &req)
		*calls = append(*calls, modelCall{
			model:    req.Model,
			hasImage: bytes.Contains(body, []byte(`"image_url"`)),
		})

		content, ok := respond[req.Model]
		w.Header().Set("Content-Type", "application/json")
		if !ok || content == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestAdviseUsesPrimaryModel(t *testing.T) {
	srv, calls := newChatStub(t, map[string]string{
		"m1": `{"headline":"Scout for bollworm","actions_now":["Walk the field edges"],"confidence":"high"}`,
	})
	c := NewAdvisoryClient(LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m1", FallbackModel: "m2", TimeoutSeconds: 5})

	adv, err := c.Advise(context.Background(), AdviseRequest{
		Profile:  &domain.Farmer{Crop: "cotton", Stage: domain.StageFlowering},
		Symptoms: "holes in bolls",
		Language: domain.LangEnglish,
	})
	if err != nil {
		t.Fatalf("advise: %v", err)
	}
	if len(*calls) != 1 || (*calls)[0].model != "m1" {
		t.Fatalf("calls = %+v", *calls)
	}
	if adv.Headline != "Scout for bollworm" || adv.Confidence != domain.ConfidenceHigh {
		t.Fatalf("advisory = %+v", adv)
	}
	if adv.Stage != domain.StageFlowering {
		t.Fatalf("stage = %q, expected it from the profile", adv.Stage)
	}
}

func TestAdviseFallsBackToSecondModel(t *testing.T) {
	srv, calls := newChatStub(t, map[string]string{
		"m2": `Sure, here you go: {"headline":"Hold irrigation","confidence":"medium"} hope that helps`,
	})
	c := NewAdvisoryClient(LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m1", FallbackModel: "m2", TimeoutSeconds: 5})

	adv, err := c.Advise(context.Background(), AdviseRequest{Language: domain.LangEnglish})
	if err != nil {
		t.Fatalf("advise: %v", err)
	}
	if got := *calls; len(got) == 0 || got[0].model != "m1" || got[len(got)-1].model != "m2" {
		t.Fatalf("calls = %+v, expected m1 first then m2", got)
	}
	// Prose around the object is tolerated; the JSON span is extracted.
	if adv.Headline != "Hold irrigation" || adv.Confidence != domain.ConfidenceMedium {
		t.Fatalf("advisory = %+v", adv)
	}
}

func TestAdviseChainExhausted(t *testing.T) {
	srv, _ := newChatStub(t, nil)
	c := NewAdvisoryClient(LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m1", FallbackModel: "m2", TimeoutSeconds: 5})

	_, err := c.Advise(context.Background(), AdviseRequest{Language: domain.LangEnglish})
	if !errors.Is(err, domain.ErrToolUnavailable) {
		t.Fatalf("err = %v, expected ErrToolUnavailable", err)
	}
}

func TestDiagnoseVisionFirst(t *testing.T) {
	srv, calls := newChatStub(t, map[string]string{
		"vision-m": `{"label":"Leaf curl virus","advice":"Rogue out infected plants.","confidence":1.7}`,
	})
	c := NewDiagnosisClient(LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "text-m", VisionModel: "vision-m", TimeoutSeconds: 5})

	diag, err := c.Diagnose(context.Background(), DiagnoseRequest{
		PhotoURL: "https://files.example/a.jpg",
		Caption:  "curled leaves",
		Crop:     "cotton",
		Language: domain.LangEnglish,
	})
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	if len(*calls) != 1 || (*calls)[0].model != "vision-m" || !(*calls)[0].hasImage {
		t.Fatalf("calls = %+v, expected one vision call with the image", *calls)
	}
	if diag.Label != "Leaf curl virus" {
		t.Fatalf("label = %q", diag.Label)
	}
	if diag.Confidence != 1 {
		t.Fatalf("confidence = %v, expected clamp to 1", diag.Confidence)
	}
}

func TestDiagnoseFallsBackToCaption(t *testing.T) {
	srv, calls := newChatStub(t, map[string]string{
		"text-m": `{"label":"Possible mildew","advice":"Improve airflow.","confidence":0.4}`,
	})
	c := NewDiagnosisClient(LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "text-m", VisionModel: "vision-m", TimeoutSeconds: 5})

	diag, err := c.Diagnose(context.Background(), DiagnoseRequest{
		PhotoURL: "https://files.example/a.jpg",
		Caption:  "white powder on leaves",
		Language: domain.LangEnglish,
	})
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	got := *calls
	if len(got) < 2 {
		t.Fatalf("calls = %+v, expected a vision attempt then a text retry", got)
	}
	if got[0].model != "vision-m" || !got[0].hasImage {
		t.Fatalf("first call = %+v", got[0])
	}
	last := got[len(got)-1]
	if last.model != "text-m" || last.hasImage {
		t.Fatalf("last call = %+v, expected caption-only", last)
	}
	if diag.Label != "Possible mildew" {
		t.Fatalf("label = %q", diag.Label)
	}
}

func TestDiagnoseWithoutPhotoGoesStraightToText(t *testing.T) {
	srv, calls := newChatStub(t, map[string]string{
		"text-m": `{"label":"Nutrient deficiency","advice":"Soil test first.","confidence":0.5}`,
	})
	c := NewDiagnosisClient(LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "text-m", VisionModel: "vision-m", TimeoutSeconds: 5})

	if _, err := c.Diagnose(context.Background(), DiagnoseRequest{Caption: "pale leaves", Language: domain.LangEnglish}); err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	if len(*calls) != 1 || (*calls)[0].model != "text-m" || (*calls)[0].hasImage {
		t.Fatalf("calls = %+v", *calls)
	}
}

func TestDiagnoseChainExhausted(t *testing.T) {
	srv, _ := newChatStub(t, nil)
	c := NewDiagnosisClient(LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "text-m", VisionModel: "vision-m", TimeoutSeconds: 5})

	_, err := c.Diagnose(context.Background(), DiagnoseRequest{PhotoURL: "https://files.example/a.jpg", Caption: "x"})
	if !errors.Is(err, domain.ErrToolUnavailable) {
		t.Fatalf("err = %v, expected ErrToolUnavailable", err)
	}
}

func TestFirstJSONObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{`Sure! {"a":{"b":2}} done`, `{"a":{"b":2}}`},
		{"no object here", ""},
		{"", ""},
		{"}{", ""},
	}
	for _, tc := range cases {
		if got := firstJSONObject(tc.in); got != tc.want {
			t.Fatalf("firstJSONObject(%q) = %q, expected %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildAdvisePrompt(t *testing.T) {
	size := 2.0
	sown := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	req := AdviseRequest{
		Profile: &domain.Farmer{
			Crop:         "cotton",
			Stage:        domain.StageFlowering,
			LocationText: "Nashik",
			LandSize:     &size,
			LandUnit:     "acre",
			SowingDate:   &sown,
		},
		Symptoms:  "holes in bolls",
		Diagnosis: &domain.Diagnosis{Label: "Bollworm", Advice: "Set traps.", Confidence: 0.8},
		Weather:   &domain.WeatherNote{Summary: "Clear, 31°", Alerts: []string{"Heat wave"}},
		Web:       &domain.WebNote{Snippets: []string{"snippet one", "snippet two"}},
		Language:  domain.LangMarathi,
	}

	prompt := buildAdvisePrompt(req)
	for _, want := range []string{
		`"cotton"`, `"flowering"`, "Nashik", "2 acre", "2025-11-10",
		"holes in bolls",
		"Bollworm", "confidence 0.80",
		"Clear, 31°", "Alerts: Heat wave",
		"- snippet one",
		"in Marathi.",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildDiagnoseNote(t *testing.T) {
	note := buildDiagnoseNote(DiagnoseRequest{Crop: "cotton", Stage: domain.StageFruiting, Caption: "spots", Language: domain.LangHindi})
	for _, want := range []string{"Crop: cotton.", "Stage: fruiting.", "Farmer's note: spots", "in Hindi."} {
		if !strings.Contains(note, want) {
			t.Fatalf("note missing %q: %s", want, note)
		}
	}

	empty := buildDiagnoseNote(DiagnoseRequest{Language: domain.LangEnglish})
	if !strings.Contains(empty, "No extra context") || !strings.Contains(empty, "in English.") {
		t.Fatalf("empty note = %q", empty)
	}
}

func TestMarshalContext(t *testing.T) {
	if got := marshalContext(nil); got != "{}" {
		t.Fatalf("nil farmer = %q", got)
	}
	got := marshalContext(&domain.Farmer{Crop: "wheat", Stage: domain.StageSowing})
	var decoded map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if decoded["crop"] != "wheat" || decoded["stage"] != "sowing" {
		t.Fatalf("context = %v", decoded)
	}
}
