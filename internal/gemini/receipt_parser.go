package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// ParseReceiptTimeout is the timeout for Gemini API calls.
const ParseReceiptTimeout = 30 * time.Second

// maxDraftDescription caps the generated description.
const maxDraftDescription = 200

var (
	// ErrParseTimeout indicates the Gemini API call timed out.
	ErrParseTimeout = errors.New("receipt parsing timed out")
	// ErrNoData indicates no usable data could be extracted from the receipt.
	ErrNoData = errors.New("no usable data extracted from receipt")
	// ErrEmptyImage is returned when no image bytes were supplied.
	ErrEmptyImage = errors.New("image data is required")
)

// DefaultCategories are the business expense categories offered to the model.
var DefaultCategories = []string{
	"Meals & Entertainment",
	"Travel - Airfare",
	"Travel - Lodging",
	"Travel - Ground Transport",
	"Office Supplies",
	"Software & Subscriptions",
	"Training & Education",
	"Client Gifts",
	"Telecommunications",
	"Equipment",
	"Other",
}

// ReceiptDraft is what a receipt image yields: the fields of an expense
// submission, each possibly empty when the model could not read it.
type ReceiptDraft struct {
	Amount      decimal.Decimal
	Currency    string
	Merchant    string
	Description string
	Category    string
	Date        time.Time
	Confidence  float64
}

// HasAmount reports whether an amount was extracted.
func (d *ReceiptDraft) HasAmount() bool {
	return d.Amount.IsPositive()
}

// HasMerchant reports whether a merchant was extracted.
func (d *ReceiptDraft) HasMerchant() bool {
	return d.Merchant != ""
}

// IsPartial reports whether only one of amount and merchant was extracted.
func (d *ReceiptDraft) IsPartial() bool {
	return d.HasAmount() != d.HasMerchant()
}

// IsEmpty reports whether nothing usable was extracted.
func (d *ReceiptDraft) IsEmpty() bool {
	return !d.HasAmount() && !d.HasMerchant()
}

type receiptResponse struct {
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	Merchant    string  `json:"merchant"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
}

// ParseReceipt extracts a submission draft from a receipt image.
func (c *Client) ParseReceipt(ctx context.Context, imageBytes []byte, mimeType string) (*ReceiptDraft, error) {
	if len(imageBytes) == 0 {
		return nil, ErrEmptyImage
	}
	if c.generator == nil {
		return nil, errors.New("gemini client not initialized")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, ParseReceiptTimeout)
	defer cancel()

	resp, err := c.generator.GenerateContent(timeoutCtx, c.model, []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageBytes}},
				{Text: buildReceiptPrompt(c.categories)},
			},
		},
	}, receiptConfig(c.categories))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrParseTimeout
		}
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no response from Gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return nil, errors.New("empty response from Gemini")
	}

	draft, err := parseReceiptResponse(text.String(), c.categories)
	if err != nil {
		return nil, err
	}
	if draft.IsEmpty() {
		return nil, ErrNoData
	}

	logger.Log.Debug().
		Bool("partial", draft.IsPartial()).
		Str("currency", draft.Currency).
		Float64("confidence", draft.Confidence).
		Msg("Receipt parsed")
	return draft, nil
}

func receiptConfig(categories []string) *genai.GenerateContentConfig {
	temp := float32(0.1)
	return &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"amount":      {Type: genai.TypeString, Description: "Total amount paid as a numeric string"},
				"currency":    {Type: genai.TypeString, Description: "ISO 4217 currency code"},
				"merchant":    {Type: genai.TypeString, Description: "Merchant or store name"},
				"description": {Type: genai.TypeString, Description: "Short business description of the purchase"},
				"date":        {Type: genai.TypeString, Description: "Purchase date as YYYY-MM-DD"},
				"category":    {Type: genai.TypeString, Enum: categories},
				"confidence":  {Type: genai.TypeNumber, Description: "Extraction confidence between 0 and 1"},
			},
			Required: []string{"amount", "merchant", "confidence"},
		},
	}
}

func buildReceiptPrompt(categories []string) string {
	return fmt.Sprintf(`Analyze this receipt image for an employee expense claim.
Return ONLY a JSON object with no additional text or markdown formatting.

Fields:
- amount: the total amount paid (numeric string, e.g., "54.60")
- currency: the ISO 4217 currency code printed on the receipt, or "" if unknown
- merchant: the merchant/store name
- description: a short description of what was purchased
- date: the date of purchase in YYYY-MM-DD format
- category: one of these categories that best matches: %s
- confidence: your confidence in the extraction accuracy (0.0 to 1.0)

If a field cannot be determined, use an empty string for text fields, "0" for amount, or 0.0 for confidence.`,
		strings.Join(categories, ", "))
}

func parseReceiptResponse(response string, categories []string) (*ReceiptDraft, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var rr receiptResponse
	if err := json.Unmarshal([]byte(response), &rr); err != nil {
		return nil, fmt.Errorf("failed to parse receipt response: %w", err)
	}

	draft := &ReceiptDraft{
		Merchant:    strings.TrimSpace(rr.Merchant),
		Description: strings.TrimSpace(rr.Description),
		Confidence:  min(max(rr.Confidence, 0), 1),
	}

	if a := strings.TrimSpace(rr.Amount); a != "" && a != "0" {
		amount, err := decimal.NewFromString(a)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", rr.Amount, err)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("negative amount %q", rr.Amount)
		}
		draft.Amount = amount.Round(2)
	}

	if code := strings.ToUpper(strings.TrimSpace(rr.Currency)); code != "" {
		if _, ok := models.SupportedCurrencies[code]; ok {
			draft.Currency = code
		}
	}

	for _, cat := range categories {
		if strings.EqualFold(cat, strings.TrimSpace(rr.Category)) {
			draft.Category = cat
			break
		}
	}

	if rr.Date != "" {
		if date, err := time.Parse(time.DateOnly, strings.TrimSpace(rr.Date)); err == nil {
			draft.Date = date
		}
	}

	if draft.Description == "" && draft.Merchant != "" {
		draft.Description = draft.Merchant
	}
	if r := []rune(draft.Description); len(r) > maxDraftDescription {
		draft.Description = string(r[:maxDraftDescription])
	}

	return draft, nil
}
