package main

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/leofalp/devchat/providers/memory"
)

// loadAttachments reads each path into a base64 attachment. Files whose
// MIME type is image/* are sent as images, everything else as documents.
func loadAttachments(paths []string) ([]memory.Attachment, error) {
	attachments := make([]memory.Attachment, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = http.DetectContentType(content)
		}

		kind := memory.AttachmentDocument
		if strings.HasPrefix(mimeType, "image/") {
			kind = memory.AttachmentImage
		}

		attachments = append(attachments, memory.Attachment{
			Type:     kind,
			Data:     base64.StdEncoding.EncodeToString(content),
			Name:     filepath.Base(path),
			MimeType: mimeType,
			Size:     int64(len(content)),
		})
	}
	return attachments, nil
}
