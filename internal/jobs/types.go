package jobs

import "time"

type Status string

const (
	StatusQueued           Status = "queued"
	StatusConverting       Status = "converting"
	StatusExtractingAssets Status = "extracting_assets"
	StatusAnalyzing        Status = "analyzing"
	StatusTranslating      Status = "translating"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

type Kind string

const (
	KindDocument    Kind = "document"
	KindTranslation Kind = "translation"
)

// TagSuggestion is one classification tag proposed by the model provider.
type TagSuggestion struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// Record is the persisted state of one pipeline execution. Each result field
// is owned by exactly one stage executor; advisory stages merge only their
// own fields so siblings completing in any order cannot clobber each other.
type Record struct {
	ID         string `json:"id"`
	Kind       Kind   `json:"kind"`
	OwnerID    string `json:"owner_id"`
	Filename   string `json:"filename,omitempty"`
	SourcePath string `json:"source_path,omitempty"`

	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`

	// Conversion stage
	Content string `json:"content,omitempty"`

	// Identifier extraction stage
	Title   string `json:"title,omitempty"`
	DOI     string `json:"doi,omitempty"`
	ArxivID string `json:"arxiv_id,omitempty"`

	// Advisory stages
	Embedding []float64       `json:"embedding,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	Methods   []string        `json:"methods,omitempty"`
	Structure string          `json:"structure,omitempty"`
	Tags      []TagSuggestion `json:"tags,omitempty"`

	// Translation jobs
	DocumentID        string `json:"document_id,omitempty"`
	TargetLanguage    string `json:"target_language,omitempty"`
	SourceLanguage    string `json:"source_language,omitempty"`
	ChunksTotal       int    `json:"chunks_total,omitempty"`
	ChunksDone        int    `json:"chunks_done,omitempty"`
	TranslatedContent string `json:"translated_content,omitempty"`

	QuotaNotified bool `json:"quota_notified,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy. Stores hand out clones only, so readers can
// never mutate the live record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	tmp := *r
	if r.Embedding != nil {
		tmp.Embedding = append([]float64(nil), r.Embedding...)
	}
	if r.Methods != nil {
		tmp.Methods = append([]string(nil), r.Methods...)
	}
	if r.Tags != nil {
		tmp.Tags = append([]TagSuggestion(nil), r.Tags...)
	}
	return &tmp
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
