package classifier

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// candidateText pulls the model's text answer out of a generateContent
// response. Thought parts are skipped.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}
	first := resp.Candidates[0]
	var b strings.Builder
	if first.Content != nil {
		for _, p := range first.Content.Parts {
			if p == nil || p.Thought {
				continue
			}
			b.WriteString(p.Text)
		}
	}
	text := stripFence(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty candidate (finish reason %q)", ErrMalformedResponse, first.FinishReason)
	}
	return text, nil
}

// stripFence removes a ```json ... ``` wrapper some models add despite being
// asked for bare JSON.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseDetection decodes a detection answer. Both booleans are required.
func ParseDetection(text string) (Detection, error) {
	var raw struct {
		CardPresent *bool `json:"card_present"`
		IsSteady    *bool `json:"is_steady"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Detection{}, fmt.Errorf("%w: detection is not JSON: %v", ErrMalformedResponse, err)
	}
	if raw.CardPresent == nil || raw.IsSteady == nil {
		return Detection{}, fmt.Errorf("%w: detection missing card_present or is_steady", ErrMalformedResponse)
	}
	d := Detection{CardPresent: *raw.CardPresent, IsSteady: *raw.IsSteady}
	// A steady absent card is meaningless; treat it as absent.
	if !d.CardPresent {
		d.IsSteady = false
	}
	return d, nil
}

// requiredFields must be present as keys in an extraction, even if empty.
var requiredFields = []string{"first_name", "last_name", "company", "email", "phone"}

// ParseContactFields decodes an extraction answer.
func ParseContactFields(text string) (*ContactFields, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &keys); err != nil {
		return nil, fmt.Errorf("%w: extraction is not a JSON object: %v", ErrMalformedResponse, err)
	}
	for _, k := range requiredFields {
		if _, ok := keys[k]; !ok {
			return nil, fmt.Errorf("%w: extraction missing %q", ErrMalformedResponse, k)
		}
	}

	var raw struct {
		ContactFields
		LogoBox []int `json:"logo_box"`
		CardBox []int `json:"card_box"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: extraction has wrong field types: %v", ErrMalformedResponse, err)
	}

	fields := raw.ContactFields
	fields.LogoBox = toBox("logo_box", raw.LogoBox)
	fields.CardBox = toBox("card_box", raw.CardBox)
	if fields.PhoneNormalized == "" && fields.Phone != "" {
		fields.PhoneNormalized = NormalizePhone(fields.Phone)
	} else {
		fields.PhoneNormalized = NormalizePhone(fields.PhoneNormalized)
	}
	return &fields, nil
}

// toBox keeps a box only when it has four in-range coordinates.
func toBox(name string, v []int) *Box {
	if len(v) == 0 {
		return nil
	}
	if len(v) != 4 {
		slog.Debug("Dropping bounding box with wrong arity", "box", name, "len", len(v))
		return nil
	}
	b := Box{v[0], v[1], v[2], v[3]}
	if !b.Valid() {
		slog.Debug("Dropping out of range bounding box", "box", name, "value", v)
		return nil
	}
	return &b
}
