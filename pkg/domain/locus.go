package domain

import "time"

// Locus is an addressable position of a dialogue's interaction tree.
// The path string is the index key: two loci of a dialogue are the same locus
// exactly when their paths are equal.
type Locus struct {
	ID         string    `json:"id" yaml:"id"`
	DialogueID string    `json:"dialogue_id" yaml:"dialogue_id"`
	Path       string    `json:"path" yaml:"path"`
	ParentPath string    `json:"parent_path,omitempty" yaml:"parent_path,omitempty"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// IsRoot reports whether the locus is the root of its dialogue.
func (l Locus) IsRoot() bool {
	return l.ParentPath == "" && (l.Path == "0" || l.Path == "")
}
