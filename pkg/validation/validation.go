package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// EventTypeRegex validates event type format
	EventTypeRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

	// IdentifierRegex validates user/organization/tool ID format
	IdentifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateEventType validates an event type label
func ValidateEventType(eventType string) error {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return fmt.Errorf("event type is required")
	}
	if len(eventType) > 100 {
		return fmt.Errorf("event type is too long (max 100 characters)")
	}
	if !EventTypeRegex.MatchString(eventType) {
		return fmt.Errorf("invalid event type format")
	}
	return nil
}

// ValidateUserID validates user ID
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if len(userID) > 100 {
		return fmt.Errorf("user ID is too long (max 100 characters)")
	}
	if !IdentifierRegex.MatchString(userID) {
		return fmt.Errorf("invalid user ID format")
	}
	return nil
}

// ValidateOrganizationID validates organization ID
func ValidateOrganizationID(orgID string) error {
	if orgID == "" {
		return fmt.Errorf("organization ID is required")
	}
	if len(orgID) > 100 {
		return fmt.Errorf("organization ID is too long (max 100 characters)")
	}
	if !IdentifierRegex.MatchString(orgID) {
		return fmt.Errorf("invalid organization ID format")
	}
	return nil
}

// ValidateToolID validates tool ID
func ValidateToolID(toolID string) error {
	if toolID == "" {
		return fmt.Errorf("tool ID is required")
	}
	if len(toolID) > 100 {
		return fmt.Errorf("tool ID is too long (max 100 characters)")
	}
	if !IdentifierRegex.MatchString(toolID) {
		return fmt.Errorf("invalid tool ID format")
	}
	return nil
}

// ValidateAmount validates a payment amount
func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be > 0")
	}
	if amount > 1_000_000 {
		return fmt.Errorf("amount is too high (max 1000000)")
	}
	return nil
}

// ValidatePlanName validates a subscription plan name
func ValidatePlanName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("plan name is required")
	}
	if len(name) > 100 {
		return fmt.Errorf("plan name is too long (max 100 characters)")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("plan name contains invalid characters")
	}
	return nil
}

// ValidateBillingCycle validates billing cycle value
func ValidateBillingCycle(cycle string) error {
	validCycles := map[string]bool{
		"monthly": true,
		"yearly":  true,
	}
	if !validCycles[cycle] {
		return fmt.Errorf("invalid billing cycle (must be monthly or yearly)")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
