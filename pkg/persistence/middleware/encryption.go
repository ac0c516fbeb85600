package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/ports"
)

// EnvelopeHeader marks an event whose payload is sealed by the encryption
// middleware.
const EnvelopeHeader = "X-Interop-Encrypted"

const envelopeScheme = "aes-256-gcm"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot decrypt,
	// which allows key rotation without rewriting stored traces.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.TraceStore
	config EncryptionConfig
}

// payload is the sealed part of an event. Ordering fields stay in clear so
// stored traces can still be listed and inspected.
type payload struct {
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
	Fault   string            `json:"fault,omitempty"`
}

// NewEncryptionMiddleware creates a middleware that seals event headers,
// bodies and faults with AES-GCM.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.TraceStore) ports.TraceStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, trace *domain.Trace) error {
	sealed := *trace
	sealed.Events = make([]domain.Event, len(trace.Events))
	for i, ev := range trace.Events {
		plain, err := json.Marshal(payload{Headers: ev.Headers, Body: ev.Body, Fault: ev.Fault})
		if err != nil {
			return fmt.Errorf("failed to marshal event %d: %w", ev.Seq, err)
		}
		ciphertext, err := encrypt(plain, m.config.ActiveKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt event %d: %w", ev.Seq, err)
		}

		env := ev
		env.Headers = map[string]string{EnvelopeHeader: envelopeScheme}
		env.Body = base64.StdEncoding.EncodeToString(ciphertext)
		env.Fault = ""
		sealed.Events[i] = env
	}
	return m.next.Save(ctx, &sealed)
}

func (m *encryptionMiddleware) Load(ctx context.Context, id string) (*domain.Trace, error) {
	sealed, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	out := *sealed
	out.Events = make([]domain.Event, len(sealed.Events))
	for i, ev := range sealed.Events {
		// Fail closed: a store configured for encryption only holds envelopes.
		if ev.Headers[EnvelopeHeader] != envelopeScheme {
			return nil, fmt.Errorf("event %d is missing the encrypted data envelope", ev.Seq)
		}
		ciphertext, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode ciphertext of event %d: %w", ev.Seq, err)
		}
		plain, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt event %d: %w", ev.Seq, err)
		}
		var p payload
		if err := json.Unmarshal(plain, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decrypted event %d: %w", ev.Seq, err)
		}

		ev.Headers = p.Headers
		ev.Body = p.Body
		ev.Fault = p.Fault
		out.Events[i] = ev
	}
	return &out, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
