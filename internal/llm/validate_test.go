package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func testSchema() *Schema {
	return &Schema{
		Name:        "test-item-score",
		Description: "A per-item score object",
		Definition: map[string]any{
			"type": "object",
			"patternProperties": map[string]any{
				"^hamd[0-9]{1,2}$": map[string]any{"type": "number"},
			},
			"additionalProperties": false,
			"minProperties":        1,
		},
	}
}

func TestValidateResponse_ValidJSON(t *testing.T) {
	raw := json.RawMessage(`{"hamd1":2,"hamd2":0}`)
	if err := validateResponse(testSchema(), raw); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidateResponse_ForeignKey(t *testing.T) {
	raw := json.RawMessage(`{"mood":"low"}`)
	err := validateResponse(testSchema(), raw)
	if err == nil {
		t.Fatal("expected error for key outside the naming convention")
	}
	var invErr *ErrInvalidResponse
	if !errors.As(err, &invErr) {
		t.Fatalf("expected ErrInvalidResponse, got: %T", err)
	}
}

func TestValidateResponse_WrongValueType(t *testing.T) {
	raw := json.RawMessage(`{"hamd1":"two"}`)
	err := validateResponse(testSchema(), raw)
	if err == nil {
		t.Fatal("expected error for non-numeric value")
	}
	var invErr *ErrInvalidResponse
	if !errors.As(err, &invErr) {
		t.Fatalf("expected ErrInvalidResponse, got: %T", err)
	}
}

func TestValidateResponse_EmptyObject(t *testing.T) {
	raw := json.RawMessage(`{}`)
	if err := validateResponse(testSchema(), raw); err == nil {
		t.Fatal("expected error for empty object (minProperties)")
	}
}

func TestValidateResponse_MalformedJSON(t *testing.T) {
	raw := json.RawMessage(`{not json}`)
	err := validateResponse(testSchema(), raw)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	var invErr *ErrInvalidResponse
	if !errors.As(err, &invErr) {
		t.Fatalf("expected ErrInvalidResponse, got: %T", err)
	}
}

func TestValidateResponse_NilSchema(t *testing.T) {
	raw := json.RawMessage(`{"anything":"goes"}`)
	if err := validateResponse(nil, raw); err != nil {
		t.Fatalf("nil schema must validate anything, got: %v", err)
	}
}

func TestValidateJSON_Exported(t *testing.T) {
	// ValidateJSON is the same contract, reachable from other packages.
	if err := ValidateJSON(testSchema(), json.RawMessage(`{"hamd17":0}`)); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if err := ValidateJSON(testSchema(), json.RawMessage(`[]`)); err == nil {
		t.Fatal("expected error for non-object instance")
	}
}
