package calibration

import (
	"encoding/json"
	"testing"
)

func TestEvaluateBoundariesInclusive(t *testing.T) {
	cases := []struct {
		name        string
		value       float64
		wantError   float64
		wantVerdict Verdict
	}{
		{name: "at lower limit", value: 9.5, wantError: -0.5, wantVerdict: VerdictPass},
		{name: "at upper limit", value: 10.5, wantError: 0.5, wantVerdict: VerdictPass},
		{name: "at nominal", value: 10, wantError: 0, wantVerdict: VerdictPass},
		{name: "above upper", value: 10.6, wantError: 0.6, wantVerdict: VerdictFail},
		{name: "below lower", value: 9.4, wantError: -0.6, wantVerdict: VerdictFail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errorValue, verdict := Evaluate(tc.value, 10, 9.5, 10.5)
			if !almostEqual(errorValue, tc.wantError) {
				t.Fatalf("error = %v, want %v", errorValue, tc.wantError)
			}
			if verdict != tc.wantVerdict {
				t.Fatalf("verdict = %s, want %s", verdict, tc.wantVerdict)
			}
		})
	}
}

func TestRecordSidesAreIndependent(t *testing.T) {
	m := Measurement{Nominal: 10, LowerLimit: 9.5, UpperLimit: 10.5}

	m.RecordAsFound(floatPtr(10.6))
	if m.AsFound.Verdict != VerdictFail {
		t.Fatalf("as-found verdict = %s, want fail", m.AsFound.Verdict)
	}
	if m.AsLeft.Verdict != VerdictUnmeasured {
		t.Fatalf("as-left verdict = %s, want unmeasured", m.AsLeft.Verdict)
	}

	m.RecordAsLeft(floatPtr(10.0))
	if m.AsLeft.Verdict != VerdictPass {
		t.Fatalf("as-left verdict = %s, want pass", m.AsLeft.Verdict)
	}
	// Re-evaluating as-left must not touch the stored as-found result.
	if m.AsFound.Verdict != VerdictFail || !almostEqual(*m.AsFound.Error, 0.6) {
		t.Fatalf("as-found mutated: verdict=%s error=%v", m.AsFound.Verdict, *m.AsFound.Error)
	}
}

func TestRecordNilValueLeavesSideUnmeasured(t *testing.T) {
	m := Measurement{Nominal: 10, LowerLimit: 9.5, UpperLimit: 10.5}
	m.RecordAsFound(nil)
	if m.AsFound.Verdict != VerdictUnmeasured || m.AsFound.Value != nil || m.AsFound.Error != nil {
		t.Fatalf("expected unmeasured side, got %+v", m.AsFound)
	}
}

func TestVerdictZeroValueIsUnmeasured(t *testing.T) {
	var m Measurement
	if m.AsFound.Verdict != VerdictUnmeasured || m.AsLeft.Verdict != VerdictUnmeasured {
		t.Fatalf("zero-value sides = %q/%q, want unmeasured", m.AsFound.Verdict, m.AsLeft.Verdict)
	}
	if m.InTolerance() || m.Failed() {
		t.Fatal("zero-value measurement must be neither in tolerance nor failed")
	}
}

func TestVerdictWireForms(t *testing.T) {
	data, err := json.Marshal(Reading{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"value":null,"error":null,"verdict":"unmeasured"}` {
		t.Fatalf("unexpected reading json: %s", data)
	}

	var v Verdict
	if err := json.Unmarshal([]byte(`"pass"`), &v); err != nil || v != VerdictPass {
		t.Fatalf("unmarshal pass = %q, %v", v, err)
	}
	if err := json.Unmarshal([]byte(`"unmeasured"`), &v); err != nil || v != VerdictUnmeasured {
		t.Fatalf("unmarshal unmeasured = %q, %v", v, err)
	}
	if err := json.Unmarshal([]byte(`"bogus"`), &v); err == nil {
		t.Fatal("expected error for unknown verdict")
	}

	stored, err := VerdictUnmeasured.Value()
	if err != nil || stored != "unmeasured" {
		t.Fatalf("stored zero value = %v, %v", stored, err)
	}
	var scanned Verdict
	if err := scanned.Scan("unmeasured"); err != nil || scanned != VerdictUnmeasured {
		t.Fatalf("scanned = %q, %v", scanned, err)
	}
	if err := scanned.Scan("fail"); err != nil || scanned != VerdictFail {
		t.Fatalf("scanned = %q, %v", scanned, err)
	}
}

func TestInToleranceRequiresBothSides(t *testing.T) {
	m := Measurement{Nominal: 10, LowerLimit: 9.5, UpperLimit: 10.5}
	m.RecordAsFound(floatPtr(10))
	if m.InTolerance() {
		t.Fatal("one recorded side must not count as in tolerance")
	}
	m.RecordAsLeft(floatPtr(10.2))
	if !m.InTolerance() {
		t.Fatal("both passing sides must count as in tolerance")
	}
}
