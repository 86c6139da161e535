package usageapi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"golang.org/x/crypto/pbkdf2"
)

// sessionCookies reads the Claude desktop app's Chromium cookie DB and
// decrypts the cookies the usage endpoint needs. The DB is copied to a temp
// file first because the app keeps it locked.
func sessionCookies() (map[string]string, error) {
	if runtime.GOOS != "darwin" {
		return nil, fmt.Errorf("cookie extraction only supported on macOS")
	}

	key, err := encryptionKey()
	if err != nil {
		return nil, fmt.Errorf("getting encryption key: %w", err)
	}

	cookiesPath := filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Claude", "Cookies")
	if _, err := os.Stat(cookiesPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("Claude desktop cookie DB not found: %s", cookiesPath)
	}

	tmp, err := os.CreateTemp("", "agentmon-cookies-*.db")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	src, err := os.ReadFile(cookiesPath)
	if err != nil {
		return nil, fmt.Errorf("reading cookie DB: %w", err)
	}
	if err := os.WriteFile(tmpPath, src, 0o600); err != nil {
		return nil, fmt.Errorf("copying cookie DB: %w", err)
	}

	db, err := sql.Open("sqlite3", tmpPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening cookie DB: %w", err)
	}
	defer db.Close()

	wanted := []string{"sessionKey", "cf_clearance", "anthropic-device-id", "lastActiveOrg", "__cf_bm"}
	placeholders := make([]string, len(wanted))
	args := make([]interface{}, len(wanted))
	for i, name := range wanted {
		placeholders[i] = "?"
		args[i] = name
	}

	query := fmt.Sprintf(
		"SELECT name, encrypted_value FROM cookies WHERE host_key LIKE '%%claude.ai%%' AND name IN (%s)",
		strings.Join(placeholders, ","),
	)
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cookies: %w", err)
	}
	defer rows.Close()

	cookies := make(map[string]string)
	for rows.Next() {
		var name string
		var encrypted []byte
		if err := rows.Scan(&name, &encrypted); err != nil {
			continue
		}
		value, err := decryptCookie(encrypted, key)
		if err != nil {
			continue // skip cookies we can't decrypt
		}
		cookies[name] = value
	}

	if _, ok := cookies["sessionKey"]; !ok {
		return nil, fmt.Errorf("sessionKey cookie not found (desktop app may not be logged in)")
	}
	return cookies, nil
}

func encryptionKey() ([]byte, error) {
	out, err := exec.Command("security", "find-generic-password", "-w", "-s", "Claude Safe Storage", "-a", "Claude").Output()
	if err != nil {
		return nil, fmt.Errorf("keychain lookup failed: %w", err)
	}
	password := strings.TrimSpace(string(out))
	return pbkdf2.Key([]byte(password), []byte("saltysalt"), 1003, 16, sha1.New), nil
}

// decryptCookie handles Chromium's v10 AES-128-CBC cookie encryption.
func decryptCookie(encrypted, key []byte) (string, error) {
	if len(encrypted) < 3 {
		return "", fmt.Errorf("encrypted value too short")
	}
	if prefix := string(encrypted[:3]); prefix != "v10" {
		return "", fmt.Errorf("unexpected cookie encryption version %q", prefix)
	}
	ciphertext := encrypted[3:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("ciphertext not aligned to block size")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("creating AES cipher: %w", err)
	}

	iv := []byte("                ") // 16 spaces
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	if len(plaintext) == 0 {
		return "", fmt.Errorf("empty plaintext")
	}
	padLen := int(plaintext[len(plaintext)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(plaintext) {
		return "", fmt.Errorf("invalid PKCS7 padding")
	}
	plaintext = plaintext[:len(plaintext)-padLen]

	const chromiumPrefixLen = 32
	if len(plaintext) <= chromiumPrefixLen {
		return "", fmt.Errorf("decrypted value too short (len=%d)", len(plaintext))
	}
	return string(plaintext[chromiumPrefixLen:]), nil
}
