// Package leads accepts investor enquiries from the site's lead-capture form.
package leads

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var (
	// ErrInvalid matches every ValidationError.
	ErrInvalid = errors.New("leads: invalid submission")
	// ErrRateLimited is returned when a client submits too often.
	ErrRateLimited = errors.New("leads: too many submissions")
	// ErrBotCheck is returned when bot verification is required and did not pass.
	ErrBotCheck = errors.New("leads: bot check failed")
)

const (
	defaultSource  = "website"
	maxPhoneLength = 32
	maxSourceLen   = 64
)

// Submission is the form payload as posted by the browser.
type Submission struct {
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	InvestmentMinK *int   `json:"investment_min_k"`
	InvestmentMaxK *int   `json:"investment_max_k"`
	Source         string `json:"source"`
	TurnstileToken string `json:"turnstile_token"`
}

// Client carries request provenance; neither field is stored verbatim except the user agent.
type Client struct {
	IP        string
	UserAgent string
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// normalize trims and validates sub in place.
func normalize(sub *Submission) error {
	sub.Email = strings.ToLower(strings.TrimSpace(sub.Email))
	sub.Phone = strings.TrimSpace(sub.Phone)
	sub.Source = strings.TrimSpace(sub.Source)

	if sub.Email == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	addr, err := mail.ParseAddress(sub.Email)
	if err != nil || addr.Address != sub.Email {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	if len(sub.Phone) > maxPhoneLength {
		return &ValidationError{Field: "phone", Message: "is too long"}
	}
	if lo := sub.InvestmentMinK; lo != nil && *lo < 0 {
		return &ValidationError{Field: "investment_min_k", Message: "cannot be negative"}
	}
	if hi := sub.InvestmentMaxK; hi != nil && *hi < 0 {
		return &ValidationError{Field: "investment_max_k", Message: "cannot be negative"}
	}
	if sub.InvestmentMinK != nil && sub.InvestmentMaxK != nil && *sub.InvestmentMinK > *sub.InvestmentMaxK {
		return &ValidationError{Field: "investment_max_k", Message: "must not be below investment_min_k"}
	}
	if sub.Source == "" {
		sub.Source = defaultSource
	}
	if len(sub.Source) > maxSourceLen {
		sub.Source = sub.Source[:maxSourceLen]
	}
	return nil
}

// HashIP returns the salted SHA-256 of ip in hex, or "" for an empty ip.
func HashIP(salt, ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + "|" + ip))
	return hex.EncodeToString(sum[:])
}

// Band renders the investment range, e.g. "$50k-$100k" or "$250k+".
func Band(minK, maxK *int) string {
	switch {
	case minK != nil && maxK != nil:
		return fmt.Sprintf("$%dk-$%dk", *minK, *maxK)
	case minK != nil:
		return fmt.Sprintf("$%dk+", *minK)
	case maxK != nil:
		return fmt.Sprintf("up to $%dk", *maxK)
	default:
		return ""
	}
}
