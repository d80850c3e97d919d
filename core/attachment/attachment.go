package attachment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/leofalp/devchat/providers/ai"
	"github.com/leofalp/devchat/providers/memory"
)

var (
	// ErrInvalidDocument is returned when a document attachment is not
	// base64-encoded UTF-8 text.
	ErrInvalidDocument = errors.New("invalid document attachment")

	// ErrUnsupportedType is returned for attachment types other than image
	// and document.
	ErrUnsupportedType = errors.New("unsupported attachment type")
)

// Option configures Encode.
type Option func(*options)

type options struct {
	htmlAsMarkdown bool
}

// WithHTMLAsMarkdown converts text/html documents to Markdown before they
// are inlined.
func WithHTMLAsMarkdown() Option {
	return func(o *options) {
		o.htmlAsMarkdown = true
	}
}

// Encode turns a user message and its attachments into content parts: the
// text first, then one part per attachment in input order. Images become
// inline image parts; documents are decoded and inlined as text under a
// "Document <name> content:" header.
func Encode(text string, attachments []memory.Attachment, opts ...Option) ([]ai.ContentPart, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	parts := make([]ai.ContentPart, 0, len(attachments)+1)
	parts = append(parts, ai.NewTextPart(text))

	for i, att := range attachments {
		switch att.Type {
		case memory.AttachmentImage:
			parts = append(parts, ai.NewImagePart(att.MimeType, att.Data))

		case memory.AttachmentDocument:
			decoded, err := decodeDocument(att, o)
			if err != nil {
				return nil, fmt.Errorf("attachment %d (%q): %w", i, att.Name, err)
			}
			parts = append(parts, ai.NewTextPart("\n\nDocument \""+att.Name+"\" content:\n"+decoded))

		default:
			return nil, fmt.Errorf("attachment %d (%q): %w: %q", i, att.Name, ErrUnsupportedType, att.Type)
		}
	}

	return parts, nil
}

func decodeDocument(att memory.Attachment, o options) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(att.Data)
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", ErrInvalidDocument, err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: content is not UTF-8 text", ErrInvalidDocument)
	}

	text := string(raw)
	if o.htmlAsMarkdown && isHTML(att.MimeType) {
		markdown, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			return "", fmt.Errorf("%w: html to markdown: %v", ErrInvalidDocument, err)
		}
		text = markdown
	}
	return text, nil
}

func isHTML(mimeType string) bool {
	mediaType, _, _ := strings.Cut(strings.ToLower(mimeType), ";")
	return strings.TrimSpace(mediaType) == "text/html"
}
