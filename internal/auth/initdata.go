// Package auth verifies web panel callers.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Scheme is the Authorization header scheme carrying init data
const Scheme = "tma"

var (
	// ErrUnauthenticated means no init data was presented
	ErrUnauthenticated = errors.New("init data missing")
	// ErrInvalidSignature means the init data is malformed or its hash does not match
	ErrInvalidSignature = errors.New("init data signature is invalid")
	// ErrExpired means the init data is older than the configured max age
	ErrExpired = errors.New("init data expired")
)

// Identity is the verified caller of a panel request
type Identity struct {
	UserID    int64
	FirstName string
	LastName  string
	Username  string
	AuthDate  time.Time
}

type initDataUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Authenticator checks init data signed by the platform client with the bot token
type Authenticator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewAuthenticator creates an authenticator for the bot token.
// A non-positive maxAge disables the auth_date check.
func NewAuthenticator(botToken string, maxAge time.Duration) *Authenticator {
	return &Authenticator{
		secret: secretKey(botToken),
		maxAge: maxAge,
		now:    time.Now,
	}
}

func secretKey(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

// FromHeader verifies the value of an "Authorization: tma <init data>" header
func (a *Authenticator) FromHeader(value string) (Identity, error) {
	scheme, initData, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, Scheme) {
		return Identity{}, ErrUnauthenticated
	}
	return a.Verify(strings.TrimSpace(initData))
}

// Verify checks the hash of initData and returns the caller it names.
// The user field is decoded only after the hash matched.
func (a *Authenticator) Verify(initData string) (Identity, error) {
	if initData == "" {
		return Identity{}, ErrUnauthenticated
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	hashes := values["hash"]
	if len(hashes) != 1 || hashes[0] == "" {
		return Identity{}, fmt.Errorf("%w: hash missing", ErrInvalidSignature)
	}
	given, err := hex.DecodeString(hashes[0])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: hash is not hex", ErrInvalidSignature)
	}

	checkString, err := dataCheckString(values)
	if err != nil {
		return Identity{}, err
	}

	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(checkString))
	if !hmac.Equal(mac.Sum(nil), given) {
		return Identity{}, ErrInvalidSignature
	}

	identity, err := parseIdentity(values)
	if err != nil {
		return Identity{}, err
	}

	if a.maxAge > 0 && a.now().Sub(identity.AuthDate) > a.maxAge {
		return Identity{}, ErrExpired
	}
	return identity, nil
}

// dataCheckString joins every field except hash as sorted key=value lines
func dataCheckString(values url.Values) (string, error) {
	keys := make([]string, 0, len(values))
	for key, vals := range values {
		if key == "hash" {
			continue
		}
		if len(vals) != 1 {
			return "", fmt.Errorf("%w: field %q repeated", ErrInvalidSignature, key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, key := range keys {
		lines[i] = key + "=" + values.Get(key)
	}
	return strings.Join(lines, "\n"), nil
}

func parseIdentity(values url.Values) (Identity, error) {
	var user initDataUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return Identity{}, fmt.Errorf("%w: user field: %v", ErrInvalidSignature, err)
	}
	if user.ID == 0 {
		return Identity{}, fmt.Errorf("%w: user id missing", ErrInvalidSignature)
	}

	identity := Identity{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.Username,
	}
	if raw := values.Get("auth_date"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: auth_date: %v", ErrInvalidSignature, err)
		}
		identity.AuthDate = time.Unix(seconds, 0)
	}
	return identity, nil
}
