// Package keyring provides secure credential storage keyed by
// (service, account). It uses the system keyring when available,
// falling back to encrypted local file storage when not.
//
// The service key is derived deterministically from the profile name
// (ServiceFor), so credentials saved by setup are found again by
// connect without any extra bookkeeping. The account is the VPN
// username, or TOTPAccount for the profile's TOTP seed.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"
)

// servicePrefix namespaces keyring entries per VPN profile.
const servicePrefix = "openvpn-"

// TOTPAccount is the reserved account name under which a profile's
// TOTP seed is stored.
const TOTPAccount = "totp"

// Common errors returned by keyring operations.
var (
	ErrNotFound = errors.New("credential not found")
)

// ServiceFor derives the keyring service key for a profile name.
func ServiceFor(profile string) string {
	return servicePrefix + profile
}

// Storage backend state. The local fallback store is only engaged when
// the system keyring is unusable.
var (
	useLocalStorage bool
	localStoreMu    sync.RWMutex
	localStore      map[string]string
	localStoreFile  string
	encryptionKey   []byte
	initOnce        sync.Once
)

func initStorage() {
	initOnce.Do(func() {
		probe := "ovpn3ctl-keyring-probe"
		if err := keyring.Set(probe, probe, "probe"); err == nil {
			keyring.Delete(probe, probe)
			return
		}
		useLocalStorage = true
		initLocalStorage()
	})
}

func initLocalStorage() {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".config", "ovpn3ctl")
	os.MkdirAll(configDir, 0700)
	localStoreFile = filepath.Join(configDir, ".credentials")

	// Derive the encryption key from machine-specific data, so the
	// fallback store is unreadable when copied to another host.
	hostname, _ := os.Hostname()
	material := fmt.Sprintf("ovpn3ctl-%s-%d", hostname, os.Getuid())
	encryptionKey = pbkdf2.Key([]byte(material), []byte(machineID()), 4096, 32, sha256.New)

	localStore = make(map[string]string)
	loadLocalStore()
}

func machineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err != nil {
		return "default-machine-id"
	}
	return strings.TrimSpace(string(data))
}

// storeKey flattens (service, account) into one local-store map key.
func storeKey(service, account string) string {
	return service + "/" + account
}

func loadLocalStore() {
	data, err := os.ReadFile(localStoreFile)
	if err != nil {
		return
	}

	decrypted, err := decrypt(data)
	if err != nil {
		return
	}

	json.Unmarshal(decrypted, &localStore)
}

func saveLocalStore() error {
	localStoreMu.RLock()
	data, err := json.Marshal(localStore)
	localStoreMu.RUnlock()
	if err != nil {
		return err
	}

	encrypted, err := encrypt(data)
	if err != nil {
		return err
	}

	return os.WriteFile(localStoreFile, encrypted, 0600)
}

func encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
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

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encryptionKey)
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

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// Set saves a secret for (service, account).
func Set(service, account, secret string) error {
	if service == "" || account == "" {
		return errors.New("service and account cannot be empty")
	}
	if secret == "" {
		return errors.New("secret cannot be empty")
	}
	initStorage()

	if useLocalStorage {
		localStoreMu.Lock()
		localStore[storeKey(service, account)] = secret
		localStoreMu.Unlock()
		return saveLocalStore()
	}

	if err := keyring.Set(service, account, secret); err != nil {
		// Keyring refused at runtime: engage the fallback.
		useLocalStorage = true
		initLocalStorage()
		localStoreMu.Lock()
		localStore[storeKey(service, account)] = secret
		localStoreMu.Unlock()
		return saveLocalStore()
	}
	return nil
}

// Get retrieves a secret for (service, account).
func Get(service, account string) (string, error) {
	if service == "" || account == "" {
		return "", errors.New("service and account cannot be empty")
	}
	initStorage()

	if useLocalStorage {
		localStoreMu.RLock()
		secret, exists := localStore[storeKey(service, account)]
		localStoreMu.RUnlock()
		if !exists {
			return "", ErrNotFound
		}
		return secret, nil
	}

	secret, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return secret, nil
}

// Delete removes a secret for (service, account). Deleting an absent
// entry is not an error.
func Delete(service, account string) error {
	if service == "" || account == "" {
		return errors.New("service and account cannot be empty")
	}
	initStorage()

	if useLocalStorage {
		localStoreMu.Lock()
		delete(localStore, storeKey(service, account))
		localStoreMu.Unlock()
		return saveLocalStore()
	}

	if err := keyring.Delete(service, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// Exists checks whether a secret is stored for (service, account).
func Exists(service, account string) bool {
	_, err := Get(service, account)
	return err == nil
}
