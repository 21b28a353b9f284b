package validators

import (
	"math"
	"net/url"
	"strings"

	"mindo/domain/core/valueobjects"
	"mindo/pkg/errors"
)

// NodeValidator validates node input that the entity constructors do not cover
type NodeValidator struct {
	contentMaxLength int
	codeMaxLength    int
	tagMaxLength     int
	maxCoordinate    float64
}

// NewNodeValidator creates a new node validator with default rules
func NewNodeValidator() *NodeValidator {
	return &NodeValidator{
		contentMaxLength: 200000,
		codeMaxLength:    100000,
		tagMaxLength:     50,
		maxCoordinate:    1e7,
	}
}

// ValidatePatch validates the polymorphic fields about to be merged into a node
// of type t
func (v *NodeValidator) ValidatePatch(t valueobjects.NodeType, p valueobjects.ContentPatch) error {
	if p.Content != nil {
		if t != valueobjects.NodeTypeText {
			return errors.NewValidationError("content only applies to text nodes").WithDetail("field", "content")
		}
		if len(*p.Content) > v.contentMaxLength {
			return errors.NewValidationError("content exceeds maximum length").
				WithDetail("field", "content").
				WithDetail("max_length", v.contentMaxLength)
		}
	}
	if p.Code != nil || p.Language != nil {
		if t != valueobjects.NodeTypeCode {
			return errors.NewValidationError("code only applies to code nodes").WithDetail("field", "code")
		}
		if p.Code != nil && len(*p.Code) > v.codeMaxLength {
			return errors.NewValidationError("code exceeds maximum length").
				WithDetail("field", "code").
				WithDetail("max_length", v.codeMaxLength)
		}
	}
	if p.URL != nil {
		if !t.IsMedia() {
			return errors.NewValidationError("url only applies to media nodes").WithDetail("field", "url")
		}
		if err := v.ValidateURL(*p.URL); err != nil {
			return err
		}
	}
	return nil
}

// ValidateURL validates a media URL. Empty clears the reference.
func (v *NodeValidator) ValidateURL(urlStr string) error {
	if urlStr == "" {
		return nil
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return errors.NewValidationError("invalid URL format").WithDetail("field", "url").WithCause(err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.NewValidationError("URL must use http or https scheme").
			WithDetail("field", "url").
			WithDetail("scheme", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return errors.NewValidationError("URL must have a valid host").WithDetail("field", "url")
	}

	return nil
}

// ValidateTags checks the length and shape of each tag
func (v *NodeValidator) ValidateTags(tags []string) error {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if len(tag) > v.tagMaxLength {
			return errors.NewValidationError("tag exceeds maximum length").
				WithDetail("field", "tags").
				WithDetail("tag", tag)
		}
		if strings.ContainsAny(tag, ",\n\t") {
			return errors.NewValidationError("tag contains invalid characters").
				WithDetail("field", "tags").
				WithDetail("tag", tag)
		}
	}
	return nil
}

// ValidatePosition rejects coordinates a layout or client could not have produced
func (v *NodeValidator) ValidatePosition(p valueobjects.Position) error {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return errors.NewValidationError("position must be finite")
	}
	if math.Abs(p.X) > v.maxCoordinate || math.Abs(p.Y) > v.maxCoordinate {
		return errors.NewValidationError("position out of range").
			WithDetail("x", p.X).
			WithDetail("y", p.Y).
			WithDetail("max", v.maxCoordinate)
	}
	return nil
}

// ValidateDimensions requires positive, finite render sizes
func (v *NodeValidator) ValidateDimensions(d valueobjects.Dimensions) error {
	if d.Width < 0 || d.Height < 0 || math.IsNaN(d.Width) || math.IsNaN(d.Height) {
		return errors.NewValidationError("dimensions must be non-negative")
	}
	if d.IsZero() {
		return errors.NewValidationError("dimensions cannot both be zero")
	}
	return nil
}
