package triage

import (
	"errors"
	"strings"
	"testing"
)

func TestSchemaValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "valid analysis", raw: validAnalysisJSON},
		{name: "not json", raw: `{"strategicOverview": `, wantErr: "not valid JSON"},
		{name: "top level array", raw: `[]`, wantErr: "want object, got array"},
		{name: "missing overview", raw: `{"prioritizedReports": []}`, wantErr: "$.strategicOverview: missing required field"},
		{name: "overview wrong type", raw: `{"strategicOverview": 3, "prioritizedReports": []}`, wantErr: "want string, got number"},
		{name: "reports not array", raw: `{"strategicOverview": "x", "prioritizedReports": {}}`, wantErr: "want array, got object"},
		{
			name:    "item missing field",
			raw:     `{"strategicOverview": "x", "prioritizedReports": [{"reportId": "a", "severity": "Low", "displayTitle": "t", "actionPlan": "p", "recommendedResource": "r", "justification": "j"}]}`,
			wantErr: "$.prioritizedReports[0].isRelevant: missing required field",
		},
		{
			name:    "severity outside enum",
			raw:     `{"strategicOverview": "x", "prioritizedReports": [{"reportId": "a", "severity": "Urgent", "displayTitle": "t", "actionPlan": "p", "recommendedResource": "r", "justification": "j", "isRelevant": true}]}`,
			wantErr: `"Urgent" is not one of`,
		},
		{
			name:    "null boolean",
			raw:     `{"strategicOverview": "x", "prioritizedReports": [{"reportId": "a", "severity": "Low", "displayTitle": "t", "actionPlan": "p", "recommendedResource": "r", "justification": "j", "isRelevant": null}]}`,
			wantErr: "want boolean, got null",
		},
		{name: "extra fields ignored", raw: `{"strategicOverview": "x", "prioritizedReports": [], "confidence": 0.9}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := AnalysisSchema.Validate([]byte(tt.raw))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSchemaValidate_ReportsEveryViolation(t *testing.T) {
	t.Parallel()

	err := VerificationSchema.Validate([]byte(`{"findings": [1, "ok"]}`))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"matchesDescription", "isRelevant", "$.findings[0]: want string"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestSchemaDecode(t *testing.T) {
	t.Parallel()

	var got VerificationResult
	err := VerificationSchema.Decode([]byte(`{"matchesDescription": true, "isRelevant": false, "findings": ["a", "b"]}`), &got)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !got.MatchesDescription || got.IsRelevant || len(got.Findings) != 2 {
		t.Errorf("Decode() = %+v", got)
	}

	err = VerificationSchema.Decode([]byte(`{"matchesDescription": true}`), &got)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("Decode() error = %v, want ErrMalformedResponse", err)
	}
	if !strings.Contains(err.Error(), VerificationSchema.Name) {
		t.Errorf("error %q should name the schema", err)
	}
}

func TestSchemaJSONSchema(t *testing.T) {
	t.Parallel()

	doc := AnalysisSchema.JSONSchema()
	if doc["type"] != "object" {
		t.Fatalf("type = %v, want object", doc["type"])
	}
	required, _ := doc["required"].([]string)
	if len(required) != 2 {
		t.Errorf("required = %v, want both top-level fields", required)
	}

	props := doc["properties"].(map[string]any)
	items := props["prioritizedReports"].(map[string]any)["items"].(map[string]any)
	itemRequired := items["required"].([]string)
	if len(itemRequired) != 7 {
		t.Errorf("item required = %v, want 7 fields", itemRequired)
	}
	severity := items["properties"].(map[string]any)["severity"].(map[string]any)
	enum := severity["enum"].([]string)
	if strings.Join(enum, ",") != "Critical,High,Medium,Low" {
		t.Errorf("severity enum = %v", enum)
	}
}
