package wire

import (
	"crypto/ed25519"
	"testing"
	"time"
)

func TestEnvelopeSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	body := PayForChunksRequest{Addresses: [][]byte{{1, 2, 3}}}
	env := NewEnvelope(KindPayForChunks, "wallet-1", 1, time.UnixMilli(1000), body)

	if err := env.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(env.Sig) == 0 {
		t.Fatal("expected non-empty signature")
	}
	if err := env.Verify(pub); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestEnvelopeVerifyRejectsTamperedSeq(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	env := NewEnvelope(KindPutChunk, "wallet-1", 1, time.UnixMilli(1000), PutChunkRequest{Address: []byte{9}})
	if err := env.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	env.Seq = 2
	if err := env.Verify(pub); err == nil {
		t.Fatal("expected verification failure after tampering with seq")
	}
}

func TestEnvelopeMarshalUnmarshalRoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	env := NewEnvelope(KindVerifyChunks, "wallet-2", 7, time.UnixMilli(42), VerifyChunksRequest{Addresses: [][]byte{{1}, {2}}})
	if err := env.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	data, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Envelope
	if err := decoded.Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.From != "wallet-2" || decoded.Seq != 7 || decoded.Kind != KindVerifyChunks {
		t.Fatalf("unexpected decoded envelope: %+v", decoded)
	}
}

func TestWireErrorMessage(t *testing.T) {
	e := &Error{Code: ErrorCodeNotEnoughBalance, Reason: "balance too low"}
	if e.IsRetryable() {
		t.Error("error without RetryAfter should not be retryable")
	}
	retry := uint32(5)
	e2 := &Error{Code: ErrorCodeCouldNotVerifyTransfer, Reason: "try again", RetryAfter: &retry}
	if !e2.IsRetryable() {
		t.Error("error with RetryAfter should be retryable")
	}
	if e2.Error() == "" {
		t.Error("expected non-empty error message")
	}
}
