package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text   string
	err    error
	model  string
	config *genai.GenerateContentConfig
	parts  []*genai.Part
}

func (f *fakeGenerator) GenerateContent(
	_ context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 {
		f.parts = contents[0].Parts
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}}},
		},
	}, nil
}

func TestBuildReceiptPrompt(t *testing.T) {
	t.Parallel()

	prompt := buildReceiptPrompt([]string{"Meals & Entertainment", "Travel - Airfare"})
	for _, want := range []string{"Meals & Entertainment", "Travel - Airfare", "amount", "currency", "merchant", "date", "category", "confidence"} {
		require.Contains(t, prompt, want)
	}
}

func TestParseReceiptResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     *ReceiptDraft
		wantErr  bool
	}{
		{
			name: "valid complete response",
			response: `{"amount": "54.60", "currency": "sgd", "merchant": "Swee Choon Tim Sum Restaurant",` +
				` "description": "Team dinner", "date": "2019-04-21", "category": "Meals & Entertainment", "confidence": 0.95}`,
			want: &ReceiptDraft{
				Amount:      decimal.RequireFromString("54.60"),
				Currency:    "SGD",
				Merchant:    "Swee Choon Tim Sum Restaurant",
				Description: "Team dinner",
				Category:    "Meals & Entertainment",
				Date:        time.Date(2019, 4, 21, 0, 0, 0, 0, time.UTC),
				Confidence:  0.95,
			},
		},
		{
			name:     "markdown code block and merchant as description",
			response: "```json\n{\"amount\": \"10.50\", \"merchant\": \"Grab\", \"date\": \"2024-01-15\", \"category\": \"travel - ground transport\", \"confidence\": 0.8}\n```",
			want: &ReceiptDraft{
				Amount:      decimal.RequireFromString("10.50"),
				Merchant:    "Grab",
				Description: "Grab",
				Category:    "Travel - Ground Transport",
				Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
				Confidence:  0.8,
			},
		},
		{
			name:     "unsupported currency and unknown category are dropped",
			response: `{"amount": "25.00", "currency": "XYZ", "merchant": "Kiosk", "category": "Snacks", "date": "15/01/2024", "confidence": 1.7}`,
			want: &ReceiptDraft{
				Amount:      decimal.RequireFromString("25.00"),
				Merchant:    "Kiosk",
				Description: "Kiosk",
				Confidence:  1,
			},
		},
		{
			name:     "zero amount",
			response: `{"amount": "0", "merchant": "Unknown", "confidence": 0.3}`,
			want: &ReceiptDraft{
				Amount:      decimal.Zero,
				Merchant:    "Unknown",
				Description: "Unknown",
				Confidence:  0.3,
			},
		},
		{name: "invalid json", response: `not json`, wantErr: true},
		{name: "invalid amount", response: `{"amount": "abc"}`, wantErr: true},
		{name: "negative amount", response: `{"amount": "-5.00", "merchant": "Refund"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseReceiptResponse(tt.response, DefaultCategories)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, tt.want.Amount.Equal(got.Amount), "amount %s", got.Amount)
			require.Equal(t, tt.want.Currency, got.Currency)
			require.Equal(t, tt.want.Merchant, got.Merchant)
			require.Equal(t, tt.want.Description, got.Description)
			require.Equal(t, tt.want.Category, got.Category)
			require.True(t, tt.want.Date.Equal(got.Date))
			require.InDelta(t, tt.want.Confidence, got.Confidence, 0.0001)
		})
	}
}

func TestReceiptDraft_Completeness(t *testing.T) {
	t.Parallel()

	full := ReceiptDraft{Amount: decimal.NewFromInt(5), Merchant: "Cafe"}
	require.True(t, full.HasAmount())
	require.True(t, full.HasMerchant())
	require.False(t, full.IsPartial())
	require.False(t, full.IsEmpty())

	amountOnly := ReceiptDraft{Amount: decimal.NewFromInt(5)}
	require.True(t, amountOnly.IsPartial())

	empty := ReceiptDraft{}
	require.True(t, empty.IsEmpty())
	require.False(t, empty.IsPartial())
}

func TestClient_ParseReceipt(t *testing.T) {
	t.Parallel()

	t.Run("returns a draft and sends the image with a schema", func(t *testing.T) {
		t.Parallel()
		gen := &fakeGenerator{text: `{"amount": "12.30", "currency": "USD", "merchant": "Staples", "category": "Office Supplies", "confidence": 0.9}`}
		c := NewClientWithGenerator(gen, WithModel("gemini-test"))

		draft, err := c.ParseReceipt(context.Background(), []byte{0xff, 0xd8}, "")
		require.NoError(t, err)
		require.Equal(t, "USD", draft.Currency)
		require.Equal(t, "Office Supplies", draft.Category)

		require.Equal(t, "gemini-test", gen.model)
		require.Equal(t, "application/json", gen.config.ResponseMIMEType)
		require.Equal(t, DefaultCategories, gen.config.ResponseSchema.Properties["category"].Enum)
		require.Equal(t, "image/jpeg", gen.parts[0].InlineData.MIMEType)
	})

	t.Run("empty image", func(t *testing.T) {
		t.Parallel()
		_, err := NewClientWithGenerator(&fakeGenerator{}).ParseReceipt(context.Background(), nil, "image/png")
		require.ErrorIs(t, err, ErrEmptyImage)
	})

	t.Run("nothing usable", func(t *testing.T) {
		t.Parallel()
		gen := &fakeGenerator{text: `{"amount": "0", "merchant": "", "confidence": 0}`}
		_, err := NewClientWithGenerator(gen).ParseReceipt(context.Background(), []byte{1}, "image/png")
		require.ErrorIs(t, err, ErrNoData)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		gen := &fakeGenerator{err: context.DeadlineExceeded}
		_, err := NewClientWithGenerator(gen).ParseReceipt(context.Background(), []byte{1}, "image/png")
		require.ErrorIs(t, err, ErrParseTimeout)
	})

	t.Run("upstream failure", func(t *testing.T) {
		t.Parallel()
		gen := &fakeGenerator{err: errors.New("quota exceeded")}
		_, err := NewClientWithGenerator(gen).ParseReceipt(context.Background(), []byte{1}, "image/png")
		require.ErrorContains(t, err, "quota exceeded")
	})

	t.Run("empty model output", func(t *testing.T) {
		t.Parallel()
		_, err := NewClientWithGenerator(&fakeGenerator{}).ParseReceipt(context.Background(), []byte{1}, "image/png")
		require.ErrorContains(t, err, "empty response")
	})
}
