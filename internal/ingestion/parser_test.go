package ingestion_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"FairSwap/internal/command"
	"FairSwap/internal/ingestion"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawCommand {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawCommand{
		Subject:  "test",
		Data:     data,
		Received: time.Now(),
		AckFunc:  func() {},
		NakFunc:  func() {},
	}
}

func basePayload() map[string]interface{} {
	return map[string]interface{}{
		"id":        "550e8400-e29b-41d4-a716-446655440000",
		"account":   "660e8400-e29b-41d4-a716-446655440001",
		"asset_id":  uint32(7),
		"timestamp": "2024-05-01T12:00:00Z",
	}
}

func TestParseCreatePair(t *testing.T) {
	payload := basePayload()
	payload["liquidity_token_id"] = uint32(8)
	payload["currency_amount"] = uint64(1_000_000)
	payload["token_amount"] = uint64(500_000)

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, command.KindCreatePair)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cp, ok := cmd.(*command.CreatePair)
	if !ok {
		t.Fatalf("expected *command.CreatePair, got %T", cmd)
	}
	if cp.Asset() != 7 {
		t.Errorf("asset: got %d, want 7", cp.Asset())
	}
	if cp.LiquidityTokenID != 8 {
		t.Errorf("liquidity_token_id: got %d, want 8", cp.LiquidityTokenID)
	}
	if cp.CurrencyAmount != 1_000_000 {
		t.Errorf("currency_amount: got %d, want 1_000_000", cp.CurrencyAmount)
	}
	if cp.TokenAmount != 500_000 {
		t.Errorf("token_amount: got %d, want 500_000", cp.TokenAmount)
	}
	if cp.CommandKind() != command.KindCreatePair {
		t.Errorf("kind: got %s, want create_pair", cp.CommandKind())
	}
}

func TestParseAddLiquidity(t *testing.T) {
	payload := basePayload()
	payload["currency_amount"] = uint64(100_000)
	payload["min_liquidity"] = uint64(90_000)
	payload["max_tokens"] = uint64(110_000)
	payload["deadline"] = uint64(5_000)

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, command.KindAddLiquidity)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	al, ok := cmd.(*command.AddLiquidity)
	if !ok {
		t.Fatalf("expected *command.AddLiquidity, got %T", cmd)
	}
	if al.CurrencyAmount != 100_000 || al.MinLiquidity != 90_000 || al.MaxTokens != 110_000 {
		t.Errorf("amounts: got (%d, %d, %d)", al.CurrencyAmount, al.MinLiquidity, al.MaxTokens)
	}
	if al.DeadlineHeight() != 5_000 {
		t.Errorf("deadline: got %d, want 5_000", al.DeadlineHeight())
	}
}

func TestParseSwapExactInput(t *testing.T) {
	payload := basePayload()
	payload["swap"] = map[string]interface{}{
		"basis":        "input",
		"input_amount": uint64(100),
		"min_output":   uint64(99),
	}
	payload["deadline"] = uint64(5_000)

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, command.KindSwapCurrencyForAsset)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sw, ok := cmd.(*command.SwapCurrencyForAsset)
	if !ok {
		t.Fatalf("expected *command.SwapCurrencyForAsset, got %T", cmd)
	}
	if sw.Spec.Basis != command.BasisInput {
		t.Errorf("basis: got %s, want input", sw.Spec.Basis)
	}
	if sw.Spec.InputAmount != 100 || sw.Spec.MinOutput != 99 {
		t.Errorf("spec: got (%d, %d)", sw.Spec.InputAmount, sw.Spec.MinOutput)
	}
}

func TestParseSwapUnknownBasis(t *testing.T) {
	payload := basePayload()
	payload["swap"] = map[string]interface{}{
		"basis":        "sideways",
		"input_amount": uint64(100),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawCommand(raw, command.KindSwapAssetForCurrency)
	if !errors.Is(err, command.ErrUnknownBasis) {
		t.Fatalf("err = %v, want ErrUnknownBasis", err)
	}
}

func TestParseIntent(t *testing.T) {
	payload := basePayload()
	payload["amount_in"] = uint64(300)
	payload["deadline"] = uint64(5_000)

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, command.KindAddSwapAssetForCurrency)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	in, ok := cmd.(*command.AddSwapAssetForCurrency)
	if !ok {
		t.Fatalf("expected *command.AddSwapAssetForCurrency, got %T", cmd)
	}
	if in.AmountIn != 300 {
		t.Errorf("amount_in: got %d, want 300", in.AmountIn)
	}
}

func TestParseSettle(t *testing.T) {
	raw := rawFromJSON(t, basePayload())
	cmd, err := ingestion.ParseRawCommand(raw, command.KindSettle)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, ok := cmd.(*command.Settle); !ok {
		t.Fatalf("expected *command.Settle, got %T", cmd)
	}
}

func TestParseUnknownKind(t *testing.T) {
	raw := rawFromJSON(t, basePayload())
	if _, err := ingestion.ParseRawCommand(raw, command.Kind("burn_everything")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestParseRejectsMissingID(t *testing.T) {
	payload := basePayload()
	delete(payload, "id")

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawCommand(raw, command.KindSettle)
	if !errors.Is(err, ingestion.ErrMissingID) {
		t.Fatalf("err = %v, want ErrMissingID", err)
	}
}

func TestParseRejectsMissingAccount(t *testing.T) {
	payload := basePayload()
	delete(payload, "account")

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawCommand(raw, command.KindSettle)
	if !errors.Is(err, ingestion.ErrMissingAccount) {
		t.Fatalf("err = %v, want ErrMissingAccount", err)
	}
}

func TestParseRejectsMissingTimestamp(t *testing.T) {
	payload := basePayload()
	delete(payload, "timestamp")

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawCommand(raw, command.KindSettle)
	if !errors.Is(err, ingestion.ErrMissingTimestamp) {
		t.Fatalf("err = %v, want ErrMissingTimestamp", err)
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	raw := ingestion.RawCommand{Subject: "test", Data: []byte("{not json")}
	if _, err := ingestion.ParseRawCommand(raw, command.KindDeposit); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestKindForSubject(t *testing.T) {
	subjects := ingestion.DefaultSubjects()

	kind, ok := ingestion.KindForSubject("amm.intents.currency.7", subjects)
	if !ok || kind != command.KindAddSwapCurrencyForAsset {
		t.Fatalf("kind = %s ok = %v, want add_swap_currency_for_asset", kind, ok)
	}

	if _, ok := ingestion.KindForSubject("orders.new.7", subjects); ok {
		t.Fatal("unexpected match for foreign subject")
	}
}
