// pkg/cipher/cipher.go

// Package cipher is the encryption boundary for chunk payloads. A closed
// set of cipher names selects the transform; "none" is a passthrough.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"ChunkFS/pkg/utils"
)

var logger = utils.GetLogger("chunkfs")

// Names of the supported ciphers.
const (
	None   = "none"
	AES128 = "aes128"
	AES192 = "aes192"
	AES256 = "aes256"
)

var ErrUnsupported = errors.New("unsupported cipher")

var keyLens = map[string]int{
	AES128: 16,
	AES192: 24,
	AES256: 32,
}

type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// New returns the encryptor for a cipher name. The AES modes need a key
// encryptor that wraps the random data key of every message; "none"
// ignores it and returns a passthrough.
func New(name string, keyEncryptor Encryptor) (Encryptor, error) {
	switch {
	case name == None || name == "":
		return passthrough{}, nil
	case keyLens[name] != 0:
		if keyEncryptor == nil {
			return nil, fmt.Errorf("cipher %s needs a key encryptor", name)
		}
		return &aesEncryptor{keyEncryptor, keyLens[name]}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
}

type passthrough struct{}

func (passthrough) Encrypt(plaintext []byte) ([]byte, error)  { return plaintext, nil }
func (passthrough) Decrypt(ciphertext []byte) ([]byte, error) { return ciphertext, nil }

type rsaEncryptor struct {
	privKey *rsa.PrivateKey
	label   []byte
}

func NewRSAEncryptor(privKey *rsa.PrivateKey) Encryptor {
	return &rsaEncryptor{privKey, []byte("keys")}
}

func (e *rsaEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, &e.privKey.PublicKey, plaintext, e.label)
}

func (e *rsaEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, e.privKey, ciphertext, e.label)
}

// aesEncryptor seals each message with AES-GCM under a fresh random data
// key; the data key travels inside the ciphertext, wrapped by the key
// encryptor.
type aesEncryptor struct {
	keyEncryptor Encryptor
	keyLen       int
}

func (e *aesEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	key := make([]byte, e.keyLen)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	cipherKey, err := e.keyEncryptor.Encrypt(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	headerSize := 3 + len(cipherKey) + len(nonce)
	buf := make([]byte, headerSize+len(plaintext)+aesgcm.Overhead())
	buf[0] = byte(len(cipherKey) >> 8)
	buf[1] = byte(len(cipherKey) & 0xFF)
	buf[2] = byte(len(nonce))
	p := buf[3:]
	copy(p, cipherKey)
	p = p[len(cipherKey):]
	copy(p, nonce)
	p = p[len(nonce):]
	ciphertext := aesgcm.Seal(p[:0], nonce, plaintext, nil)
	return buf[:headerSize+len(ciphertext)], nil
}

func (e *aesEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 3 {
		return nil, fmt.Errorf("misformed ciphertext: %d bytes", len(ciphertext))
	}
	keyLen := int(ciphertext[0])<<8 + int(ciphertext[1])
	nonceLen := int(ciphertext[2])
	if 3+keyLen+nonceLen > len(ciphertext) {
		return nil, fmt.Errorf("misformed ciphertext: %d %d", keyLen, nonceLen)
	}
	ciphertext = ciphertext[3:]
	cipherKey := ciphertext[:keyLen]
	nonce := ciphertext[keyLen : keyLen+nonceLen]
	ciphertext = ciphertext[keyLen+nonceLen:]

	key, err := e.keyEncryptor.Decrypt(cipherKey)
	if err != nil {
		return nil, errors.New("decrypt key: " + err.Error())
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return aesgcm.Open(ciphertext[:0], nonce, ciphertext, nil)
}

// ExportRsaPrivateKeyToPem marshals a private key to PKCS#8 PEM,
// optionally encrypted with PBKDF2 + AES-GCM under a passphrase.
func ExportRsaPrivateKeyToPem(key *rsa.PrivateKey, passphrase string) (string, error) {
	pkcs8Bytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", err
	}

	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: pkcs8Bytes,
	}

	if passphrase == "" {
		return string(pem.EncodeToMemory(block)), nil
	}

	salt := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	derived := pbkdf2.Key([]byte(passphrase), salt, 10000, 32, sha256.New)

	aesBlock, err := aes.NewCipher(derived)
	if err != nil {
		return "", err
	}
	gcm, err := gocipher.NewGCM(aesBlock)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	encrypted := gcm.Seal(nil, nonce, block.Bytes, nil)

	encryptedBlock := &pem.Block{
		Type: "ENCRYPTED PRIVATE KEY",
		Headers: map[string]string{
			"Proc-Type": "4,ENCRYPTED",
			"DEK-Info":  fmt.Sprintf("PBES2-AES256-GCM,%X", salt),
		},
		Bytes: append(nonce, encrypted...),
	}
	return string(pem.EncodeToMemory(encryptedBlock)), nil
}

// ParseRsaPrivateKeyFromPem loads a PKCS#8 or PKCS#1 private key,
// decrypting the PEM with the passphrase when it is protected.
func ParseRsaPrivateKeyFromPem(privPEM, passphrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing the key")
	}

	buf := block.Bytes

	if strings.Contains(block.Headers["Proc-Type"], "ENCRYPTED") {
		if passphrase == "" {
			return nil, fmt.Errorf("passphrase is required to decrypt private key")
		}

		dekInfo := block.Headers["DEK-Info"]
		if !strings.HasPrefix(dekInfo, "PBES2-AES256-GCM,") {
			return nil, fmt.Errorf("unsupported encryption scheme")
		}
		salt, err := hex.DecodeString(strings.TrimPrefix(dekInfo, "PBES2-AES256-GCM,"))
		if err != nil {
			return nil, fmt.Errorf("invalid salt in DEK-Info")
		}
		derived := pbkdf2.Key([]byte(passphrase), salt, 10000, 32, sha256.New)

		aesBlock, err := aes.NewCipher(derived)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES cipher: %v", err)
		}
		gcm, err := gocipher.NewGCM(aesBlock)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM: %v", err)
		}
		nonceSize := gcm.NonceSize()
		if len(buf) < nonceSize {
			return nil, fmt.Errorf("invalid encrypted data length")
		}
		nonce, encrypted := buf[:nonceSize], buf[nonceSize:]
		buf, err = gcm.Open(nil, nonce, encrypted, nil)
		if err != nil {
			return nil, fmt.Errorf("decryption failed: %v", err)
		}
	} else if passphrase != "" {
		logger.Warnf("passphrase is not used, because private key is not encrypted")
	}

	privKey, err := x509.ParsePKCS8PrivateKey(buf)
	if err == nil {
		if rsaKey, ok := privKey.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("key is not an RSA private key")
	}

	priv, err := x509.ParsePKCS1PrivateKey(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %v", err)
	}
	return priv, nil
}

func ParseRsaPrivateKeyFromPath(path, passphrase string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRsaPrivateKeyFromPem(string(b), passphrase)
}
