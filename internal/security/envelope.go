// Package security реализует конвертное шифрование загрузок:
// согласование ключа X25519, вывод ключа HKDF-SHA256 и AEAD XChaCha20-Poly1305.
package security

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const hkdfInfo = "chat-insights-xchacha20-v1"

var (
	// ErrDecrypt возвращается, когда конверт не удалось расшифровать.
	ErrDecrypt = errors.New("invalid encrypted payload")
	// ErrBadKey возвращается для ключа неверного формата.
	ErrBadKey = errors.New("key must be 32 bytes encoded in base64")
)

// Envelope — зашифрованная загрузка. Все поля в base64.
type Envelope struct {
	ClientPublicKey string `json:"client_public_key"`
	Nonce           string `json:"nonce"`
	Ciphertext      string `json:"ciphertext"`
}

// GenerateKeyPair создает пару ключей сервера в base64.
func GenerateKeyPair() (privateKey, publicKey string, err error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		return "", "", fmt.Errorf("generate private key: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return "", "", fmt.Errorf("derive public key: %w", err)
	}
	return encode(priv), encode(pub), nil
}

// Opener хранит долговременный закрытый ключ сервера и расшифровывает конверты.
type Opener struct {
	private []byte
	public  []byte
}

// NewOpener создает Opener по закрытому ключу в base64.
func NewOpener(privateKeyB64 string) (*Opener, error) {
	priv, err := decodeKey(privateKeyB64)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	return &Opener{private: priv, public: pub}, nil
}

// PublicKey возвращает открытый ключ сервера в base64.
func (o *Opener) PublicKey() string {
	return encode(o.public)
}

// Open расшифровывает конверт. Любая ошибка формата или проверки
// подлинности сводится к ErrDecrypt.
func (o *Opener) Open(env Envelope) ([]byte, error) {
	clientPub, err := decodeKey(env.ClientPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: client public key: %v", ErrDecrypt, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil || len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrDecrypt, chacha20poly1305.NonceSizeX)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrDecrypt, err)
	}

	aead, err := newAEAD(o.private, clientPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// Seal шифрует данные для сервера с открытым ключом serverPublicKeyB64,
// используя одноразовый ключ клиента.
func Seal(serverPublicKeyB64 string, plaintext []byte) (Envelope, error) {
	serverPub, err := decodeKey(serverPublicKeyB64)
	if err != nil {
		return Envelope{}, fmt.Errorf("server public key: %w", err)
	}

	clientPriv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(clientPriv); err != nil {
		return Envelope{}, fmt.Errorf("generate ephemeral key: %w", err)
	}
	clientPub, err := curve25519.X25519(clientPriv, curve25519.Basepoint)
	if err != nil {
		return Envelope{}, fmt.Errorf("derive ephemeral public key: %w", err)
	}

	aead, err := newAEAD(clientPriv, serverPub)
	if err != nil {
		return Envelope{}, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, fmt.Errorf("generate nonce: %w", err)
	}

	return Envelope{
		ClientPublicKey: encode(clientPub),
		Nonce:           encode(nonce),
		Ciphertext:      encode(aead.Seal(nil, nonce, plaintext, nil)),
	}, nil
}

// newAEAD согласует общий секрет и выводит из него ключ шифра.
func newAEAD(private, peerPublic []byte) (cipher.AEAD, error) {
	shared, err := curve25519.X25519(private, peerPublic)
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(key) != curve25519.PointSize {
		return nil, ErrBadKey
	}
	return key, nil
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
