// Package extract pulls structured fields out of receipt photos with Gemini.
// Extraction is strictly best-effort: the bookkeeping flow must work with the
// model unavailable, misconfigured or wrong, so every failure degrades to an
// empty result and the user types the fields in by hand.
package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/ctrlix/bookkeeper/internal/domain"
)

// DefaultModelName is the Gemini model used for receipt extraction.
const DefaultModelName = "gemini-2.5-flash"

// Extraction holds the fields the model managed to read off a receipt.
// Zero values mean the field could not be determined.
type Extraction struct {
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date"`
	Summary  string          `json:"summary"`
	HasTaxID bool            `json:"hasTaxId"`
}

// Empty reports whether the model produced nothing usable.
func (e Extraction) Empty() bool {
	return e.Amount.IsZero() && e.Date == "" && e.Summary == "" && !e.HasTaxID
}

// ReceiptExtractor reads receipt fields from an image. Implementations must
// treat being unconfigured as a valid state and return an empty extraction.
type ReceiptExtractor interface {
	Extract(ctx context.Context, imageDataURL string) (Extraction, error)
}

// GeminiExtractor extracts receipt fields with the Gemini API. The API key is
// read from the environment; without one the extractor is a no-op.
type GeminiExtractor struct {
	model string
}

// NewGeminiExtractor creates an extractor against the default model.
func NewGeminiExtractor() *GeminiExtractor {
	return &GeminiExtractor{model: DefaultModelName}
}

const receiptPrompt = "You are a bookkeeping assistant reading a photo of a receipt or invoice.\n\n" +
	"Task:\n" +
	"- Read the attached image and extract the fields below.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a single JSON object.\n\n" +
	"The object must have these fields:\n" +
	"- \"amount\": number, the total amount on the receipt, 0 if unreadable\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\", empty string if unreadable\n" +
	"- \"summary\": string, a short description of the purchase in the receipt's language\n" +
	"- \"hasTaxId\": boolean, true if the receipt carries a company tax id number\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Do NOT use ```json or any Markdown.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

// Extract sends the image to the model and parses its JSON reply. With no
// API key configured it returns an empty extraction and no error.
func (g *GeminiExtractor) Extract(ctx context.Context, imageDataURL string) (Extraction, error) {
	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		return Extraction{}, nil
	}

	mimeType, data, err := decodeDataURL(imageDataURL)
	if err != nil {
		return Extraction{}, fmt.Errorf("Extract: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("Extract: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: receiptPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     data,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return Extraction{}, fmt.Errorf("Extract: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return Extraction{}, fmt.Errorf("Extract: empty response from model")
	}

	return ParseModelReply(rawText)
}

// ParseModelReply parses the model's raw reply, stripping Markdown fences and
// surrounding junk if the model ignored the format instructions.
func ParseModelReply(raw string) (Extraction, error) {
	clean := cleanModelJSON(raw)

	var ex Extraction
	if err := json.Unmarshal([]byte(clean), &ex); err != nil {
		return Extraction{}, fmt.Errorf("ParseModelReply: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	return ex, nil
}

// decodeDataURL splits a data URL into MIME type and raw bytes. Bare base64
// without the data: prefix is accepted and assumed to be a JPEG.
func decodeDataURL(s string) (string, []byte, error) {
	mimeType := "image/jpeg"
	payload := s

	if strings.HasPrefix(s, "data:") {
		rest := strings.TrimPrefix(s, "data:")
		idx := strings.Index(rest, ";base64,")
		if idx == -1 {
			return "", nil, fmt.Errorf("decodeDataURL: not a base64 data URL")
		}
		if mt := rest[:idx]; mt != "" {
			mimeType = mt
		}
		payload = rest[idx+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decodeDataURL: decoding base64: %w", err)
	}
	return mimeType, data, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// If there is still junk around the JSON object, keep only from the
	// first '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

// Apply copies extracted fields onto a transaction draft, never clobbering a
// value the user already entered.
func Apply(tx *domain.Transaction, ex Extraction) {
	if tx.Amount.IsZero() && !ex.Amount.IsZero() {
		tx.Amount = ex.Amount
	}
	if tx.Date.IsZero() && ex.Date != "" {
		if d, err := time.Parse(domain.DateOnly, ex.Date); err == nil {
			tx.Date = d
		}
	}
	if tx.Summary == "" && ex.Summary != "" {
		tx.Summary = ex.Summary
	}
	if !tx.HasTaxID && ex.HasTaxID {
		tx.HasTaxID = true
	}
}

var _ ReceiptExtractor = (*GeminiExtractor)(nil)
