// Package filetree provides the project snapshot that is injected into every
// prompt. A [Source] returns any JSON-serializable value; [DirSource] walks a
// local directory and [HTTPSource] asks a file service.
package filetree
