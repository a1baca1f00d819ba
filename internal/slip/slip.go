// Package slip extracts transaction fields from a photographed bank transfer
// slip with a Gemini model, then asks the model for a short advisory check of
// the result.
package slip

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// ErrExtractionFailed is the single condition reported for any failure of
// the slip flow. Callers fall back to manual entry.
var ErrExtractionFailed = errors.New("extraction failed")

// Details are the fields read from a slip.
type Details struct {
	AccountNumber string  `json:"accountNumber"`
	Purpose       string  `json:"purpose,omitempty"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	Sender        string  `json:"sender,omitempty"`
	Recipient     string  `json:"recipient,omitempty"`
}

// Time parses Date as YYYY-MM-DD or RFC3339.
func (d Details) Time() (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, d.Date); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, d.Date)
}

// Validate checks the shape of a model response.
func (d Details) Validate() error {
	if strings.TrimSpace(d.AccountNumber) == "" {
		return errors.New("accountNumber is missing")
	}
	if math.IsNaN(d.Amount) || math.IsInf(d.Amount, 0) || d.Amount <= 0 {
		return errors.Newf("amount %v is not a positive number", d.Amount)
	}
	if _, err := d.Time(); err != nil {
		return errors.Newf("date %q is not an ISO-8601 date", d.Date)
	}
	return nil
}

// ValidationInput is sent to the advisory check.
type ValidationInput struct {
	Account string `json:"account"`
	Purpose string `json:"purpose"`
	Amount  string `json:"amount"`
}

// ValidationResult is the free-text advisory. It never blocks using the details.
type ValidationResult struct {
	ValidationResult string `json:"validationResult"`
}

// Result is the outcome of Process.
type Result struct {
	Details    Details          `json:"details"`
	Validation ValidationResult `json:"validation"`
}

// Extractor runs the two model calls.
type Extractor struct {
	gen     Generator
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewExtractor creates an extractor. An empty model means DefaultModelName.
// A positive timeout bounds the whole Process call.
func NewExtractor(gen Generator, model string, timeout time.Duration, log zerolog.Logger) *Extractor {
	if model == "" {
		model = DefaultModelName
	}
	return &Extractor{gen: gen, model: model, timeout: timeout, log: log}
}

// ExtractTransactionDetails sends the slip image to the model and validates
// the structured response.
func (e *Extractor) ExtractTransactionDetails(ctx context.Context, dataURI string) (Details, error) {
	mimeType, data, err := ParseDataURI(dataURI)
	if err != nil {
		return Details{}, err
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     data,
					},
				},
			},
		},
	}

	var details Details
	if err := e.generateJSON(ctx, contents, detailsSchema, &details); err != nil {
		return Details{}, errors.Wrap(err, "ExtractTransactionDetails")
	}

	details.AccountNumber = strings.TrimSpace(details.AccountNumber)
	details.Purpose = strings.TrimSpace(details.Purpose)
	details.Sender = strings.TrimSpace(details.Sender)
	details.Recipient = strings.TrimSpace(details.Recipient)

	if err := details.Validate(); err != nil {
		return Details{}, domain.External(err, "ExtractTransactionDetails: response does not match schema")
	}
	return details, nil
}

// ValidateExtractedDetails asks the model for an advisory check of the values.
func (e *Extractor) ValidateExtractedDetails(ctx context.Context, in ValidationInput) (ValidationResult, error) {
	prompt := fmt.Sprintf(validatePrompt, in.Account, in.Purpose, in.Amount)
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	var res ValidationResult
	if err := e.generateJSON(ctx, contents, validationSchema, &res); err != nil {
		return ValidationResult{}, errors.Wrap(err, "ValidateExtractedDetails")
	}
	return res, nil
}

// Process runs extraction and then validation. Any failure is reported as
// ErrExtractionFailed. A malformed data URI is additionally an
// domain.ErrValidation; every other failure is a domain.ErrExternalService.
func (e *Extractor) Process(ctx context.Context, dataURI string) (Result, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	details, err := e.ExtractTransactionDetails(ctx, dataURI)
	if err != nil {
		e.log.Warn().Err(err).Msg("Slip extraction failed")
		return Result{}, errors.Mark(err, ErrExtractionFailed)
	}

	validation, err := e.ValidateExtractedDetails(ctx, ValidationInput{
		Account: details.AccountNumber,
		Purpose: details.Purpose,
		Amount:  strconv.FormatFloat(details.Amount, 'f', -1, 64),
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("Slip validation failed")
		return Result{}, errors.Mark(err, ErrExtractionFailed)
	}

	e.log.Info().
		Str("account_number", details.AccountNumber).
		Float64("amount", details.Amount).
		Str("date", details.Date).
		Msg("Slip extracted")

	return Result{Details: details, Validation: validation}, nil
}

func (e *Extractor) generateJSON(ctx context.Context, contents []*genai.Content, schema *genai.Schema, out interface{}) error {
	resp, err := e.gen.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return domain.External(err, "generate content")
	}

	var rawText string
	if resp != nil {
		rawText = resp.Text()
	}
	if rawText == "" {
		return domain.External(errors.New("empty response from model"), "generate content")
	}

	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), out); err != nil {
		return domain.External(err, fmt.Sprintf("unmarshal model JSON: raw response: %s", rawText))
	}
	return nil
}

// cleanModelJSON strips Markdown fences and any chatter around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
