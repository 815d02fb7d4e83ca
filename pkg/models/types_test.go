package models

import (
	"encoding/json"
	"testing"
)

func TestRiskLevelOrderingIsTotal(t *testing.T) {
	t.Parallel()

	ordered := []RiskLevel{RiskNone, RiskLow, RiskMedium, RiskHigh, RiskCritical}
	for i := 1; i < len(ordered); i++ {
		if !(ordered[i] > ordered[i-1]) {
			t.Errorf("%s must rank above %s", ordered[i], ordered[i-1])
		}
	}
}

func TestParseRiskLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]RiskLevel{
		"none":     RiskNone,
		"LOW":      RiskLow,
		"Medium":   RiskMedium,
		"high":     RiskHigh,
		"critical": RiskCritical,
		// Unknown names escalate rather than downgrade.
		"severe": RiskHigh,
		"":       RiskHigh,
	}
	for in, want := range cases {
		if got := ParseRiskLevel(in); got != want {
			t.Errorf("ParseRiskLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestRiskLevelJSONUsesWireNames(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(RiskCritical)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"critical"` {
		t.Errorf("marshaled as %s", raw)
	}

	var r RiskLevel
	if err := json.Unmarshal([]byte(`"garbage"`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r != RiskHigh {
		t.Errorf("unknown wire name decoded to %s, want high", r)
	}
}

func TestSecurityChecksUnsafe(t *testing.T) {
	t.Parallel()

	tolerable := SecurityChecks{
		CheckValueTransfer: {Safe: true, Risk: RiskMedium, Message: "large transfer"},
		CheckKnownScams:    {Safe: true, Risk: RiskNone, Message: "no scam patterns"},
	}
	if tolerable.Unsafe() {
		t.Error("medium risk alone must not be unsafe")
	}

	tolerable[CheckProxyRisks] = SecurityCheck{Safe: false, Risk: RiskHigh, Message: "proxy upgrade"}
	if !tolerable.Unsafe() {
		t.Error("a high risk entry must make the set unsafe")
	}
}

func TestPendingTransactionHelpers(t *testing.T) {
	t.Parallel()

	tx := PendingTransaction{}
	if tx.Executed() || tx.Method() != "" {
		t.Error("zero transaction must be unexecuted with no method")
	}
	if _, ok := tx.Parameter("spender"); ok {
		t.Error("zero transaction has no parameters")
	}

	when := "2026-08-29T10:00:00Z"
	tx.ExecutionDate = &when
	if !tx.Executed() {
		t.Error("transaction with execution date must report executed")
	}

	blank := ""
	tx.ExecutionDate = &blank
	if tx.Executed() {
		t.Error("blank execution date means not executed")
	}

	tx.DataDecoded = &DataDecoded{
		Method: "approve",
		Parameters: []DecodedParameter{
			{Name: "spender", Type: "address", Value: "0xdead"},
			{Name: "value", Type: "uint256", Value: "1"},
		},
	}
	if tx.Method() != "approve" {
		t.Errorf("Method() = %q", tx.Method())
	}
	p, ok := tx.Parameter("value")
	if !ok || p.Value != "1" {
		t.Errorf("Parameter(value) = %+v, %v", p, ok)
	}
}
