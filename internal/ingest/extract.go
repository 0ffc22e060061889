package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

// Analysis is the structured reading of a stitched document.
type Analysis struct {
	SoftwareName        string      `json:"software_name"`
	BestDiscount        looseString `json:"best_discount"`
	AllCouponCodes      []string    `json:"all_coupon_codes"`
	SEODescription      string      `json:"seo_description"`
	DetailedDescription string      `json:"detailed_description"`
	ComprehensiveAbout  looseText   `json:"comprehensive_about"`
	Categories          []string    `json:"categories"`
	PrimaryCategory     string      `json:"primary_category"`
	ExpirationInfo      string      `json:"expiration_info"`
	// LogoDomain is the software's own domain, e.g. "taskmagic.com".
	LogoDomain string `json:"logo_url"`
}

// ParseAnalysis decodes a model reply. Markdown fences and prose around the
// JSON object are tolerated.
func ParseAnalysis(reply string) (*Analysis, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in model reply")
	}
	var a Analysis
	if err := json.Unmarshal([]byte(s[start:end+1]), &a); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &a, nil
}

// generateFunc matches genai's Models.GenerateContent.
type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiExtractor asks a Gemini model for a JSON Analysis.
type GeminiExtractor struct {
	Model    string
	generate generateFunc
}

// NewGeminiExtractor connects to the Gemini API with apiKey.
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiExtractor{Model: model, generate: client.Models.GenerateContent}, nil
}

// Extract implements Extractor.
func (g *GeminiExtractor) Extract(ctx context.Context, name, content string) (*Analysis, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema,
	}
	resp, err := g.generate(ctx, g.Model, genai.Text(buildPrompt(name, content)), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, errors.New("empty gemini response")
	}
	return ParseAnalysis(text)
}

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"software_name":        {Type: genai.TypeString},
		"best_discount":        {Type: genai.TypeString, Description: "Highest discount percentage found, number only."},
		"all_coupon_codes":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"seo_description":      {Type: genai.TypeString, Description: "150-160 character description."},
		"detailed_description": {Type: genai.TypeString, Description: "200-300 word description of what the software does, its benefits, and its users."},
		"comprehensive_about":  {Type: genai.TypeString, Description: "About text with varied section titles, under 2300 characters."},
		"categories":           {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"primary_category":     {Type: genai.TypeString},
		"expiration_info":      {Type: genai.TypeString, Description: "Two to four words, e.g. Limited Time Only."},
		"logo_url":             {Type: genai.TypeString, Description: "The software's own domain only, e.g. example.com."},
	},
	Required: []string{"software_name", "categories", "primary_category"},
}

func buildPrompt(name, content string) string {
	return fmt.Sprintf(`Analyze the scraped data below for %q. It holds search results followed by the text of the top ranked pages.

SCRAPED DATA:
%s

Return one JSON object following the response schema.
Rules:
- best_discount: the highest percentage discount found anywhere, digits only.
- all_coupon_codes: every coupon code found, best first.
- categories: relevant categories such as Automation, Productivity, Design, Writing, Software, Tools, Services, Marketing, Development, Business, AI, Analytics, CRM, E-commerce, Education, Finance.
- primary_category: the single most relevant category.
- logo_url: the official domain of %q (for example %s.com). Ignore social media. Leave empty when unsure.
`, name, content, name, strings.ToLower(strings.ReplaceAll(name, " ", "")))
}

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("want string or number, got %s", b)
	}
	*s = looseString(b)
	return nil
}

// looseText accepts a string, an array of strings, or an object of titled
// sections, and flattens it to plain text. Object keys keep their order.
type looseText string

func (t *looseText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*t = looseText(v)
	case b[0] == '[':
		var v []string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*t = looseText(strings.Join(v, "\n\n"))
	case b[0] == '{':
		sections, err := orderedSections(b)
		if err != nil {
			return err
		}
		*t = looseText(strings.Join(sections, "\n\n"))
	default:
		return fmt.Errorf("unsupported about value %s", b)
	}
	return nil
}

func orderedSections(b []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var out []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
		s, ok := val.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		title := strings.ToUpper(strings.ReplaceAll(key, "_", " "))
		out = append(out, title+"\n"+s)
	}
	return out, nil
}
