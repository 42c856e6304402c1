package password

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrConfiguration is returned when the hasher has no salt to work with.
var ErrConfiguration = errors.New("configuration error")

// ErrInvalidArgument is returned when a hash option is out of range.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrHashComputation is returned when bcrypt fails or returns a malformed hash.
var ErrHashComputation = errors.New("hash computation failed")

const (
	// MinCost and MaxCost bound the bcrypt cost factor.
	MinCost = 4
	MaxCost = 31

	// DefaultCost is used when neither the hasher nor the call sets a cost.
	DefaultCost = 10

	// minHashLength is the length of a well-formed bcrypt hash.
	minHashLength = 60
)

// HashOptions overrides the hasher configuration for a single call.
// Zero values fall back to the configured salt and cost.
type HashOptions struct {
	Salt string
	Cost int
}

// Hasher computes salted one-way password hashes.
type Hasher struct {
	salt string
	cost int
}

// NewHasher creates a Hasher with the configured salt and bcrypt cost.
// A zero cost selects DefaultCost.
func NewHasher(salt string, cost int) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if err := checkCost(cost); err != nil {
		return nil, err
	}
	return &Hasher{salt: salt, cost: cost}, nil
}

// Salt returns the configured salt.
func (h *Hasher) Salt() string {
	return h.salt
}

// Hash returns a bcrypt hash of the password keyed by the salt.
func (h *Hasher) Hash(password string, opts HashOptions) (string, error) {
	salt, cost, err := h.resolve(opts)
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword(peppered(password, salt), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashComputation, err)
	}
	if len(hash) < minHashLength {
		return "", fmt.Errorf("%w: hash has %d characters", ErrHashComputation, len(hash))
	}
	return string(hash), nil
}

// Verify reports whether password matches a hash produced by Hash with the
// same salt. A mismatch is not an error.
func (h *Hasher) Verify(password, hash string, opts HashOptions) (bool, error) {
	salt, _, err := h.resolve(opts)
	if err != nil {
		return false, err
	}

	// Malformed stored hashes (bad version, bad cost, too short) never match.
	if err := bcrypt.CompareHashAndPassword([]byte(hash), peppered(password, salt)); err != nil {
		return false, nil
	}
	return true, nil
}

func (h *Hasher) resolve(opts HashOptions) (string, int, error) {
	salt := opts.Salt
	if salt == "" {
		salt = h.salt
	}
	if salt == "" {
		return "", 0, fmt.Errorf("%w: no password salt configured", ErrConfiguration)
	}

	cost := h.cost
	if opts.Cost != 0 {
		if err := checkCost(opts.Cost); err != nil {
			return "", 0, err
		}
		cost = opts.Cost
	}
	return salt, cost, nil
}

func checkCost(cost int) error {
	if cost < MinCost || cost > MaxCost {
		return fmt.Errorf("%w: cost has to be from %d to %d, %d given", ErrInvalidArgument, MinCost, MaxCost, cost)
	}
	return nil
}

// peppered keys the password with the salt so bcrypt always receives a
// fixed 44-byte input, well under its 72-byte limit.
func peppered(password, salt string) []byte {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(password))
	sum := mac.Sum(nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum)
	return out
}
