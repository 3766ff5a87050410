package credential

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// Sealer は保存前のクレデンシャルを暗号化し、読み込み時に復号する。
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// AgeSealer はX25519鍵によるage暗号でクレデンシャルを保護する。
// 暗号文はASCIIアーマー形式で、ファイルにもTEXTカラムにもそのまま保存できる。
type AgeSealer struct {
	identity *age.X25519Identity
}

var _ Sealer = (*AgeSealer)(nil)

// NewAgeSealer はidentityPathの鍵を読み込む。
// ファイルが存在しない場合は新しい鍵を生成してパーミッション0600で保存する。
func NewAgeSealer(identityPath string) (*AgeSealer, error) {
	data, err := os.ReadFile(identityPath)
	if errors.Is(err, os.ErrNotExist) {
		return generateIdentity(identityPath)
	}
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}

	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing identity file: %w", err)
	}
	return &AgeSealer{identity: identity}, nil
}

func generateIdentity(path string) (*AgeSealer, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating identity directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating identity file: %w", err)
	}
	defer f.Close()

	if _, err := io.WriteString(f, identity.String()+"\n"); err != nil {
		return nil, fmt.Errorf("writing identity file: %w", err)
	}
	return &AgeSealer{identity: identity}, nil
}

// Seal はplaintextを暗号化してアーマー形式の文字列を返す。
func (s *AgeSealer) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)

	w, err := age.Encrypt(aw, s.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("encrypting credential: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing encryption: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("finalizing armor: %w", err)
	}
	return buf.String(), nil
}

// Open はSealで暗号化した文字列を復号する。
func (s *AgeSealer) Open(sealed string) (string, error) {
	r, err := age.Decrypt(armor.NewReader(strings.NewReader(sealed)), s.identity)
	if err != nil {
		return "", fmt.Errorf("%w: decrypting: %w", ErrUnreadable, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: reading decrypted data: %w", ErrUnreadable, err)
	}
	return string(data), nil
}

// PlainSealer は暗号化を行わないSealer。
type PlainSealer struct{}

func (PlainSealer) Seal(plaintext string) (string, error) { return plaintext, nil }
func (PlainSealer) Open(sealed string) (string, error) { return sealed, nil }
