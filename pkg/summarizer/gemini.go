// Package summarizer turns a batch of activities into a short coaching note.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/stravabot/server/pkg/domain/activity"
)

const DefaultModel = "gemini-2.0-flash"

var errNoContent = errors.New("no content generated")

// generator is satisfied by *genai.GenerativeModel.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini summarizes activities with Google's Gemini API.
type Gemini struct {
	client  *genai.Client
	model   generator
	timeout time.Duration
}

func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.7)
	model.SetTopP(0.9)
	model.SetMaxOutputTokens(800)

	return &Gemini{client: client, model: model, timeout: 30 * time.Second}, nil
}

// Summarize makes exactly one model call.
func (g *Gemini) Summarize(ctx context.Context, activities []activity.Summary) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx, genai.Text(buildPrompt(activities)))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return responseText(resp)
}

func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errNoContent
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", errNoContent
	}
	return out, nil
}

func buildPrompt(activities []activity.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Saya punya data %d aktivitas olahraga terakhir:\n", len(activities))

	for i := range activities {
		b.WriteString("\n")
		b.WriteString(activityContext(i+1, &activities[i]))
	}

	b.WriteString(`
Tolong berikan:
1. Ringkasan performa & tren latihan.
2. Analisis kekuatan & kelemahan, termasuk konsistensi pace per kilometer jika ada split.
3. Rekomendasi latihan selanjutnya.

Jawab singkat, jelas, dalam bahasa Indonesia.
`)
	return b.String()
}

func activityContext(n int, a *activity.Summary) string {
	lines := []string{
		fmt.Sprintf("Aktivitas %d:", n),
		"- Nama: " + a.Name,
		"- Tanggal: " + a.StartDate.UTC().Format(time.RFC3339),
		"- Tipe: " + a.Type,
		fmt.Sprintf("- Jarak: %.2f km", a.Distance/1000),
		fmt.Sprintf("- Durasi: %.1f menit", float64(a.MovingTime)/60),
		"- Pace: " + activity.FormatPace(a.Pace()) + " /km",
		"- HR Rata²: " + optional(a.AverageHeartrate, "%.0f"),
		"- HR Max: " + optional(a.MaxHeartrate, "%.0f"),
		"- Elevasi: " + optional(a.TotalElevationGain, "%.0f") + " m",
	}

	if len(a.Splits) > 0 {
		paces := make([]string, 0, len(a.Splits))
		for _, s := range a.Splits {
			pace := 0.0
			if s.Distance > 0 {
				pace = float64(s.MovingTime) / (s.Distance / 1000)
			}
			paces = append(paces, activity.FormatPace(pace))
		}
		lines = append(lines, fmt.Sprintf("- Split (%s): %s", a.SplitSource, strings.Join(paces, ", ")))
	}
	return strings.Join(lines, "\n") + "\n"
}

func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
