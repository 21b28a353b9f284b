package valueobjects

import (
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
)

// NodeType tags the kind of content a node carries
type NodeType string

const (
	NodeTypeText  NodeType = "text"
	NodeTypeCode  NodeType = "code"
	NodeTypeVideo NodeType = "video"
	NodeTypeImage NodeType = "image"
	NodeTypePDF   NodeType = "pdf"
)

// IsValid reports whether t is a known node type
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeText, NodeTypeCode, NodeTypeVideo, NodeTypeImage, NodeTypePDF:
		return true
	}
	return false
}

// IsMedia reports whether content of this type points at a stored file
func (t NodeType) IsMedia() bool {
	return t == NodeTypeVideo || t == NodeTypeImage || t == NodeTypePDF
}

// Content is the polymorphic payload of a node. Each variant carries only the
// fields meaningful for its type.
type Content interface {
	Type() NodeType
	// SearchableText is the string memory-unit anchors are matched against.
	SearchableText() string
	// MediaURL is the referenced file for media variants, empty otherwise.
	MediaURL() string
}

// TextContent is rich text produced by the editor
type TextContent struct {
	HTML string
}

// CodeContent is a source snippet
type CodeContent struct {
	Code     string
	Language string
}

// VideoContent references a video file or link
type VideoContent struct {
	URL string
}

// ImageContent references an image file or link
type ImageContent struct {
	URL string
}

// PDFContent references a document
type PDFContent struct {
	URL string
}

func (TextContent) Type() NodeType           { return NodeTypeText }
func (c TextContent) SearchableText() string { return c.HTML }
func (TextContent) MediaURL() string         { return "" }
func (CodeContent) Type() NodeType           { return NodeTypeCode }
func (c CodeContent) SearchableText() string { return c.Code }
func (CodeContent) MediaURL() string         { return "" }
func (VideoContent) Type() NodeType          { return NodeTypeVideo }
func (VideoContent) SearchableText() string  { return "" }
func (c VideoContent) MediaURL() string      { return c.URL }
func (ImageContent) Type() NodeType          { return NodeTypeImage }
func (ImageContent) SearchableText() string  { return "" }
func (c ImageContent) MediaURL() string      { return c.URL }
func (PDFContent) Type() NodeType            { return NodeTypePDF }
func (PDFContent) SearchableText() string    { return "" }
func (c PDFContent) MediaURL() string        { return c.URL }

// DefaultContent returns the placeholder content for a freshly created node
func DefaultContent(t NodeType, label string) Content {
	switch t {
	case NodeTypeCode:
		return CodeContent{Language: "plaintext"}
	case NodeTypeVideo:
		return VideoContent{}
	case NodeTypeImage:
		return ImageContent{}
	case NodeTypePDF:
		return PDFContent{}
	default:
		return TextContent{HTML: "<p>" + html.EscapeString(label) + "</p>"}
	}
}

// ContentPatch is a partial update of the polymorphic fields. Fields that do not
// belong to the target variant are ignored.
type ContentPatch struct {
	Content  *string `json:"content,omitempty"`
	URL      *string `json:"url,omitempty"`
	Code     *string `json:"code,omitempty"`
	Language *string `json:"language,omitempty"`
}

// IsEmpty reports whether the patch sets nothing
func (p ContentPatch) IsEmpty() bool {
	return p.Content == nil && p.URL == nil && p.Code == nil && p.Language == nil
}

// Apply returns c with the relevant patch fields applied
func (p ContentPatch) Apply(c Content) Content {
	switch v := c.(type) {
	case TextContent:
		if p.Content != nil {
			v.HTML = *p.Content
		}
		return v
	case CodeContent:
		if p.Code != nil {
			v.Code = *p.Code
		}
		if p.Language != nil {
			v.Language = *p.Language
		}
		return v
	case VideoContent:
		if p.URL != nil {
			v.URL = *p.URL
		}
		return v
	case ImageContent:
		if p.URL != nil {
			v.URL = *p.URL
		}
		return v
	case PDFContent:
		if p.URL != nil {
			v.URL = *p.URL
		}
		return v
	}
	return c
}

// Payload is the stored shape of the structured "data" column
type Payload struct {
	Content  string      `json:"content,omitempty"`
	URL      string      `json:"url,omitempty"`
	Code     string      `json:"code,omitempty"`
	Language string      `json:"language,omitempty"`
	Style    *Dimensions `json:"style,omitempty"`
}

// EncodePayload flattens content and dimensions into the stored payload
func EncodePayload(c Content, dims Dimensions) Payload {
	var p Payload
	switch v := c.(type) {
	case TextContent:
		p.Content = v.HTML
	case CodeContent:
		p.Code = v.Code
		p.Language = v.Language
	case VideoContent:
		p.URL = v.URL
	case ImageContent:
		p.URL = v.URL
	case PDFContent:
		p.URL = v.URL
	}
	if !dims.IsZero() {
		d := dims
		p.Style = &d
	}
	return p
}

// DecodeContent rebuilds the typed content and dimensions from a stored payload
func DecodeContent(t NodeType, p Payload) (Content, Dimensions) {
	var dims Dimensions
	if p.Style != nil {
		dims = *p.Style
	}
	switch t {
	case NodeTypeCode:
		return CodeContent{Code: p.Code, Language: p.Language}, dims
	case NodeTypeVideo:
		return VideoContent{URL: p.URL}, dims
	case NodeTypeImage:
		return ImageContent{URL: p.URL}, dims
	case NodeTypePDF:
		return PDFContent{URL: p.URL}, dims
	default:
		return TextContent{HTML: p.Content}, dims
	}
}

// MergeContent replaces the content fields of stored with those of update,
// keeping the recorded style.
func MergeContent(stored, update Payload) Payload {
	update.Style = stored.Style
	return update
}

// MergeStyle overlays dims onto the style of stored
func MergeStyle(stored Payload, dims Dimensions) Payload {
	var current Dimensions
	if stored.Style != nil {
		current = *stored.Style
	}
	merged := current.Merge(dims)
	stored.Style = &merged
	return stored
}

// PlainText extracts the visible text of an HTML fragment
func PlainText(fragment string) string {
	tokenizer := xhtml.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	for {
		switch tokenizer.Next() {
		case xhtml.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case xhtml.TextToken:
			sb.Write(tokenizer.Text())
			sb.WriteByte(' ')
		}
	}
}
