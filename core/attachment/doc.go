// Package attachment converts user attachments into provider-neutral content
// parts. The conversion is pure: it neither reads files nor keeps state.
package attachment
