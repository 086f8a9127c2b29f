package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/parsea-dev/parsea/internal/common"
	"github.com/parsea-dev/parsea/internal/model"
	"github.com/shopspring/decimal"
)

// The model is treated as untrusted: it may wrap JSON in prose, truncate it,
// nest it, or skip it entirely. Parsing runs an ordered list of strategies
// over the raw text and the first one that yields candidates wins. Every
// result is normalized afterwards so the invariants (valid class, clamped
// confidence, defaulted fields) hold no matter which strategy succeeded.

var (
	// A non-nested brace pair containing at least one quoted key.
	flatObjectPattern = regexp.MustCompile(`\{[^{}]*"[^"]*"[^{}]*\}`)

	calendarDatePattern      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	exactCalendarDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	numberPattern            = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

	confidencePattern = regexp.MustCompile(`confidence["':\s]*([0-9]+(?:\.[0-9]+)?|\.[0-9]+)`)
	reasoningPattern  = regexp.MustCompile(`reasoning["':\s]*([^\n]+)`)
	categoryPattern   = regexp.MustCompile(`category["':\s]*([\w-]+)`)
)

// timeNow is stubbed in tests that exercise the current-date default.
var timeNow = time.Now

// ParseClassification converts raw model output into a fully populated
// ClassificationResult. When no strategy can make sense of the text it
// returns the safe default together with an error wrapping
// common.ErrParseFallback carrying the reason; callers log it but never
// surface it to the upload.
func ParseClassification(raw string) (model.ClassificationResult, error) {
	strategies := []struct {
		fn   func(string) (map[string]any, error)
		name string
	}{
		{parseBracedObject, "brace-scan"},
		{parseRegexObject, "regex-object"},
		{reconstructClassification, "manual-reconstruction"},
	}

	var lastErr error
	for _, s := range strategies {
		fields, err := s.fn(raw)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", s.name, err)
			continue
		}
		return normalizeClassification(fields), nil
	}

	result := model.SafeDefault("Error parsing response: " + lastErr.Error())
	return result, fmt.Errorf("%w: %v", common.ErrParseFallback, lastErr)
}

// parseBracedObject slices from the first '{' to the last '}' and attempts
// a strict JSON parse.
func parseBracedObject(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return fields, nil
}

// parseRegexObject finds non-nested brace substrings containing a quoted key
// and parses the first one that is valid JSON.
func parseRegexObject(raw string) (map[string]any, error) {
	matches := flatObjectPattern.FindAllString(raw, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no flat JSON object found in response")
	}

	var lastErr error
	for _, m := range matches {
		var fields map[string]any
		if err := json.Unmarshal([]byte(m), &fields); err != nil {
			lastErr = err
			continue
		}
		return fields, nil
	}
	return nil, fmt.Errorf("no flat object parsed: %w", lastErr)
}

// reconstructClassification rebuilds a classification from free text when no
// JSON parses: literal business/personal scan, then field-by-field regex
// extraction over the lowercased text. Unmatched fields are left absent and
// filled with defaults by normalization.
func reconstructClassification(raw string) (map[string]any, error) {
	lower := strings.ToLower(raw)
	fields := make(map[string]any)

	switch {
	case strings.Contains(lower, "business"):
		fields["classification"] = "business"
	case strings.Contains(lower, "personal"):
		fields["classification"] = "personal"
	}

	if m := confidencePattern.FindStringSubmatch(lower); m != nil {
		fields["confidence"] = m[1]
	}
	if m := reasoningPattern.FindStringSubmatch(lower); m != nil {
		fields["reasoning"] = strings.Trim(m[1], ` "',}`)
	}
	if m := categoryPattern.FindStringSubmatch(lower); m != nil {
		fields["category"] = m[1]
	}

	// Text with no recognizable content is a genuine parse failure, which
	// must stay distinguishable from a real personal classification.
	if len(fields) == 0 {
		return nil, fmt.Errorf("no recognizable classification content")
	}

	return fields, nil
}

// normalizeClassification fills defaults, clamps confidence to [0, 1] and
// coerces the class to personal unless it is exactly business or personal.
// It applies regardless of which strategy produced the fields.
func normalizeClassification(fields map[string]any) model.ClassificationResult {
	result := model.ClassificationResult{
		Class:      model.ClassPersonal,
		Confidence: 0.0,
		Reasoning:  model.UnknownReasoning,
		Category:   model.UnknownCategory,
	}

	if s, ok := stringField(fields, "classification"); ok {
		if class := model.Class(strings.ToLower(strings.TrimSpace(s))); class.IsValid() {
			result.Class = class
		}
	}
	if f, ok := floatField(fields, "confidence"); ok {
		result.Confidence = clamp01(f)
	}
	if s, ok := stringField(fields, "reasoning"); ok && strings.TrimSpace(s) != "" {
		result.Reasoning = strings.TrimSpace(s)
	}
	if s, ok := stringField(fields, "category"); ok && strings.TrimSpace(s) != "" {
		result.Category = strings.TrimSpace(s)
	}

	return result
}

// ParseTransactions converts raw model output into validated extracted
// transactions. Strategies are tried in order and the first one yielding any
// candidate wins; cleaning and validation then apply uniformly. If no
// strategy yields candidates, or none survive validation, the result is
// empty — extraction failures never propagate as errors.
func ParseTransactions(raw string) []model.ExtractedTransaction {
	strategies := []struct {
		fn   func(string) []map[string]any
		name string
	}{
		{scanJSONArray, "bracket-scan"},
		{scanFlatObjects, "multi-object-regex"},
		{scanStatementLines, "line-heuristic"},
	}

	for _, s := range strategies {
		candidates := s.fn(raw)
		if len(candidates) == 0 {
			continue
		}

		transactions := make([]model.ExtractedTransaction, 0, len(candidates))
		for i, candidate := range candidates {
			txn, err := cleanCandidate(candidate)
			if err != nil {
				slog.Warn("dropping extracted transaction",
					"strategy", s.name,
					"index", i+1,
					"error", err)
				continue
			}
			transactions = append(transactions, txn)
		}
		return transactions
	}

	return []model.ExtractedTransaction{}
}

// scanJSONArray slices from the first '[' to the last ']' and parses it as a
// JSON array, keeping the object elements.
func scanJSONArray(raw string) []map[string]any {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end <= start {
		return nil
	}

	var elements []any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &elements); err != nil {
		return nil
	}

	candidates := make([]map[string]any, 0, len(elements))
	for _, el := range elements {
		if obj, ok := el.(map[string]any); ok {
			candidates = append(candidates, obj)
		}
	}
	return candidates
}

// scanFlatObjects finds all non-nested brace substrings, parses each
// independently, and keeps those carrying the three required keys.
func scanFlatObjects(raw string) []map[string]any {
	var candidates []map[string]any
	for _, m := range flatObjectPattern.FindAllString(raw, -1) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(m), &obj); err != nil {
			continue
		}
		if _, ok := obj["date"]; !ok {
			continue
		}
		if _, ok := obj["description"]; !ok {
			continue
		}
		if _, ok := obj["amount"]; !ok {
			continue
		}
		candidates = append(candidates, obj)
	}
	return candidates
}

// scanStatementLines builds candidates from plain text lines that carry both
// a calendar date and a decimal. The first numeric match after the date is
// removed becomes the amount; the rest of the line is the description. This
// tie-break is deliberate: lines with several numbers have no reliable
// marker for which one is the amount, so the first is taken consistently.
func scanStatementLines(raw string) []map[string]any {
	var candidates []map[string]any
	for _, line := range strings.Split(raw, "\n") {
		date := calendarDatePattern.FindString(line)
		if date == "" {
			continue
		}

		rest := strings.Replace(line, date, "", 1)
		amount := numberPattern.FindString(rest)
		if amount == "" {
			continue
		}

		description := strings.TrimSpace(strings.Replace(rest, amount, "", 1))
		candidates = append(candidates, map[string]any{
			"date":        date,
			"description": description,
			"amount":      amount,
		})
	}
	return candidates
}

// cleanCandidate normalizes one extraction candidate and validates it.
// An unparsable or zero amount invalidates the candidate entirely; every
// other field degrades to a default.
func cleanCandidate(fields map[string]any) (model.ExtractedTransaction, error) {
	date, _ := stringField(fields, "date")
	date = strings.TrimSpace(date)
	if !exactCalendarDatePattern.MatchString(date) {
		date = timeNow().Format("2006-01-02")
	}

	rawDesc, _ := stringField(fields, "description")
	description := cleanDescription(rawDesc)
	if description == "" {
		return model.ExtractedTransaction{}, fmt.Errorf("empty description")
	}

	amount, err := cleanAmount(fields["amount"])
	if err != nil {
		return model.ExtractedTransaction{}, fmt.Errorf("invalid amount %v: %w", fields["amount"], err)
	}
	if amount.IsZero() {
		return model.ExtractedTransaction{}, fmt.Errorf("zero amount")
	}

	currency := "USD"
	if s, ok := stringField(fields, "currency"); ok {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			currency = s
		}
	}

	merchant := ""
	if s, ok := stringField(fields, "merchant"); ok {
		merchant = strings.TrimSpace(s)
	}

	return model.ExtractedTransaction{
		Date:        date,
		Description: description,
		Amount:      amount,
		Currency:    currency,
		Merchant:    merchant,
	}, nil
}

// cleanDescription strips embedded JSON and stray quote or comma artifacts
// that models sometimes leave inside the description field.
func cleanDescription(s string) string {
	s = strings.TrimSpace(s)

	// A description that is itself a JSON object gets replaced by its own
	// description or merchant field.
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		var nested map[string]any
		if err := json.Unmarshal([]byte(s), &nested); err == nil {
			if d, ok := stringField(nested, "description"); ok && strings.TrimSpace(d) != "" {
				s = d
			} else if m, ok := stringField(nested, "merchant"); ok && strings.TrimSpace(m) != "" {
				s = m
			} else {
				s = "Transaction description"
			}
		} else {
			s = "Transaction description"
		}
	}

	s = strings.ReplaceAll(s, `\"`, `"`)
	return strings.Trim(s, ` "',`)
}

// cleanAmount accepts numeric values directly and tolerates formatted
// strings with thousands separators and currency symbols.
func cleanAmount(v any) (decimal.Decimal, error) {
	switch amount := v.(type) {
	case float64:
		return decimal.NewFromFloat(amount), nil
	case int:
		return decimal.NewFromInt(int64(amount)), nil
	case int64:
		return decimal.NewFromInt(amount), nil
	case json.Number:
		return decimal.NewFromString(amount.String())
	case string:
		cleaned := strings.Map(func(r rune) rune {
			switch r {
			case ',', '$', '£', '€', ' ':
				return -1
			}
			return r
		}, amount)
		if cleaned == "" {
			return decimal.Decimal{}, fmt.Errorf("empty amount")
		}
		return decimal.NewFromString(cleaned)
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported amount type %T", v)
	}
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), true
	default:
		return "", false
	}
}

func floatField(fields map[string]any, key string) (float64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	switch f := v.(type) {
	case float64:
		return f, true
	case int:
		return float64(f), true
	case json.Number:
		parsed, err := f.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func clamp01(f float64) float64 {
	if f < 0.0 {
		return 0.0
	}
	if f > 1.0 {
		return 1.0
	}
	return f
}
