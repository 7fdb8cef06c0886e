package identity

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestGenerate(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(id.SigningPublicKey) != ed25519.PublicKeySize {
		t.Errorf("invalid signing public key size: %d", len(id.SigningPublicKey))
	}
	if len(id.SigningPrivateKey) != ed25519.PrivateKeySize {
		t.Errorf("invalid signing private key size: %d", len(id.SigningPrivateKey))
	}
	if id.WalletID() == "" {
		t.Error("WalletID should not be empty")
	}
}

func TestIdentityPersistence(t *testing.T) {
	tempDir := t.TempDir()

	original, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	filename := filepath.Join(tempDir, "identity.json")
	if err := original.SaveToFile(filename); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	loaded, err := LoadFromFile(filename)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if !ed25519.PublicKey(original.SigningPublicKey).Equal(loaded.SigningPublicKey) {
		t.Error("signing public keys don't match")
	}
	if !ed25519.PrivateKey(original.SigningPrivateKey).Equal(loaded.SigningPrivateKey) {
		t.Error("signing private keys don't match")
	}
	if original.KeyAgreementPublicKey != loaded.KeyAgreementPublicKey {
		t.Error("key agreement public keys don't match")
	}
	if original.KeyAgreementPrivateKey != loaded.KeyAgreementPrivateKey {
		t.Error("key agreement private keys don't match")
	}
	if original.WalletID() != loaded.WalletID() {
		t.Error("wallet IDs don't match")
	}
}

func TestIdentitySigningRoundTrip(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	message := []byte("pay for chunk batch")
	sig := id.Sign(message)

	if !id.Verify(message, sig) {
		t.Error("verification failed for correctly signed message")
	}
	if id.Verify([]byte("different message"), sig) {
		t.Error("verification should have failed for a different message")
	}
}

func TestIdentityFilePermissions(t *testing.T) {
	tempDir := t.TempDir()

	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	filename := filepath.Join(tempDir, "subdir", "identity.json")
	if err := id.SaveToFile(filename); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	if runtime.GOOS == "windows" {
		return
	}

	fileInfo, err := os.Stat(filename)
	if err != nil {
		t.Fatalf("stat identity file: %v", err)
	}
	if fileInfo.Mode().Perm() != 0o600 {
		t.Errorf("expected file mode 0600, got %o", fileInfo.Mode().Perm())
	}

	dirInfo, err := os.Stat(filepath.Dir(filename))
	if err != nil {
		t.Fatalf("stat identity directory: %v", err)
	}
	if dirInfo.Mode().Perm() != 0o700 {
		t.Errorf("expected directory mode 0700, got %o", dirInfo.Mode().Perm())
	}
}

func BenchmarkGenerate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Generate(); err != nil {
			b.Fatal(err)
		}
	}
}
