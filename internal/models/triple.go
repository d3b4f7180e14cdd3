package models

// Triple is one concept -> relation -> concept statement extracted from text.
type Triple struct {
	Subject  string `json:"subject" yaml:"subject"`
	Relation string `json:"relation" yaml:"relation"`
	Object   string `json:"object" yaml:"object"`
}
