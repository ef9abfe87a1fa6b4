package storage

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := parseKey(testKeyHex)
	if err != nil {
		t.Fatalf("parseKey failed: %v", err)
	}
	s := &S3Service{encryptionKey: key}

	plain := []byte("crew sign-in sheet")
	sealed, err := s.encryptData(plain)
	if err != nil {
		t.Fatalf("encryptData failed: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Fatal("expected ciphertext not to contain the plaintext")
	}

	opened, err := s.decryptData(sealed)
	if err != nil {
		t.Fatalf("decryptData failed: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Errorf("expected %q, got %q", plain, opened)
	}

	sealed[len(sealed)-1] ^= 0xff
	if _, err := s.decryptData(sealed); err == nil {
		t.Error("expected tampered ciphertext to fail")
	}
	if _, err := s.decryptData([]byte("short")); err == nil {
		t.Error("expected short input to fail")
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantNil bool
		wantErr bool
	}{
		{"disabled", "", true, false},
		{"valid", testKeyHex, false, false},
		{"not hex", strings.Repeat("zz", 32), true, true},
		{"too short", "0011", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := parseKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseKey err = %v, wantErr %v", err, tt.wantErr)
			}
			if (key == nil) != tt.wantNil {
				t.Errorf("parseKey key = %x, wantNil %v", key, tt.wantNil)
			}
		})
	}
}

func TestEncryptedReflectsKey(t *testing.T) {
	if (&S3Service{}).Encrypted() {
		t.Error("expected service without key to be unencrypted")
	}
	if _, err := (&S3Service{}).encryptData([]byte("x")); err == nil {
		t.Error("expected encrypt without key to fail")
	}
}

func TestSniff(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	pdf := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	elf := []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	tests := []struct {
		name    string
		data    []byte
		want    string
		wantExt string
		wantErr bool
	}{
		{"png", png, "image/png", ".png", false},
		{"pdf", pdf, "application/pdf", ".pdf", false},
		{"text", []byte("hard hats on site"), "text/plain; charset=utf-8", ".txt", false},
		{"executable", elf, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, ext, err := Sniff(tt.data)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFileType) {
					t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Sniff failed: %v", err)
			}
			if ct != tt.want || ext != tt.wantExt {
				t.Errorf("Sniff = (%q, %q), want (%q, %q)", ct, ext, tt.want, tt.wantExt)
			}
		})
	}
}

func TestAttachmentKeys(t *testing.T) {
	org := uuid.MustParse("6f1c7a52-51f7-4c53-9d1e-6a3f0b7f2a10")
	ref := AttachmentRef{OrganizationID: org, TemplateID: "tpl", FieldID: "photo"}

	key := ref.Key("a.png")
	if key != "attachments/6f1c7a52-51f7-4c53-9d1e-6a3f0b7f2a10/tpl/photo/a.png" {
		t.Fatalf("unexpected key %s", key)
	}
	if !OwnsKey(org, key) {
		t.Error("expected organization to own its key")
	}
	if OwnsKey(uuid.New(), key) {
		t.Error("expected another organization not to own the key")
	}
	if OwnsKey(org, OrganizationPrefix(org)+"../other/secret") {
		t.Error("expected traversal to be rejected")
	}
}

func TestReadLimited(t *testing.T) {
	if _, err := readLimited(bytes.NewReader(make([]byte, MaxAttachmentSize+1))); !errors.Is(err, ErrAttachmentTooLarge) {
		t.Errorf("expected ErrAttachmentTooLarge, got %v", err)
	}
	data, err := readLimited(strings.NewReader("ok"))
	if err != nil || string(data) != "ok" {
		t.Errorf("readLimited = %q, %v", data, err)
	}
}
