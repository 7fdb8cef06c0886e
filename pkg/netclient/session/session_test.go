package session

import (
	"testing"

	"github.com/meshstore/netup/pkg/identity"
)

func TestHandshakeCompletesBothSides(t *testing.T) {
	clientID, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate client identity: %v", err)
	}
	serverID, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate server identity: %v", err)
	}

	client, err := NewClientHandshake(clientID, serverID.KeyAgreementPublicKey[:])
	if err != nil {
		t.Fatalf("NewClientHandshake: %v", err)
	}
	server, err := NewServerHandshake(serverID)
	if err != nil {
		t.Fatalf("NewServerHandshake: %v", err)
	}

	clientHello, err := client.CreateHello()
	if err != nil {
		t.Fatalf("client CreateHello: %v", err)
	}
	clientHelloBytes, err := clientHello.Marshal()
	if err != nil {
		t.Fatalf("marshal client hello: %v", err)
	}

	msg1, err := client.Step(clientHelloBytes)
	if err != nil {
		t.Fatalf("client Step 1: %v", err)
	}
	if client.IsComplete() {
		t.Fatal("client should not be complete after sending message 1")
	}

	payload1, err := server.ReadStep(msg1)
	if err != nil {
		t.Fatalf("server ReadStep 1: %v", err)
	}
	var receivedClientHello Hello
	if err := receivedClientHello.Unmarshal(payload1); err != nil {
		t.Fatalf("unmarshal client hello: %v", err)
	}
	if err := receivedClientHello.Verify(clientID.SigningPublicKey); err != nil {
		t.Fatalf("verify client hello: %v", err)
	}
	if receivedClientHello.WalletID != clientID.WalletID() {
		t.Errorf("wallet id mismatch: got %q want %q", receivedClientHello.WalletID, clientID.WalletID())
	}

	serverHello, err := server.CreateHello()
	if err != nil {
		t.Fatalf("server CreateHello: %v", err)
	}
	serverHelloBytes, err := serverHello.Marshal()
	if err != nil {
		t.Fatalf("marshal server hello: %v", err)
	}

	msg2, err := server.Step(serverHelloBytes)
	if err != nil {
		t.Fatalf("server Step 2: %v", err)
	}
	if !server.IsComplete() {
		t.Fatal("server should be complete after sending message 2")
	}

	payload2, err := client.ReadStep(msg2)
	if err != nil {
		t.Fatalf("client ReadStep 2: %v", err)
	}
	if !client.IsComplete() {
		t.Fatal("client should be complete after reading message 2")
	}

	var receivedServerHello Hello
	if err := receivedServerHello.Unmarshal(payload2); err != nil {
		t.Fatalf("unmarshal server hello: %v", err)
	}
	if err := receivedServerHello.Verify(serverID.SigningPublicKey); err != nil {
		t.Fatalf("verify server hello: %v", err)
	}
}

func TestHelloVerifyRejectsTamperedProof(t *testing.T) {
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	h := &Hello{Version: protocolVersion, WalletID: id.WalletID(), NoiseKey: id.KeyAgreementPublicKey[:]}
	if err := h.Sign(id.SigningPrivateKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	h.WalletID = "tampered"
	if err := h.Verify(id.SigningPublicKey); err == nil {
		t.Fatal("expected verification failure after tampering")
	}
}
