package models

import (
	"slices"
	"sort"
	"time"
)

// LocalizedText is a piece of copy in both supported languages.
type LocalizedText struct {
	EN string `json:"en"`
	AR string `json:"ar"`
}

// CopyContent is the marketing copy generated from the transcription.
type CopyContent struct {
	Headline    LocalizedText `json:"headline"`
	Subheadline LocalizedText `json:"subheadline"`
	CTA         LocalizedText `json:"cta"`
}

// ImageType tags an intermediate render artifact.
type ImageType string

const (
	ImagePhotoshoot    ImageType = "photoshoot"
	ImageSharpExpanded ImageType = "sharp_expanded"
	ImageBlended       ImageType = "blended"
	ImageUpscaled      ImageType = "upscaled"
)

// ProcessedImage is an intermediate image produced by one of the image stages.
type ProcessedImage struct {
	Type ImageType `json:"type"`
	URL  string    `json:"url"`
	Key  string    `json:"key"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ValidationScore carries the server's readability review of a design.
type ValidationScore struct {
	ReadabilityIssues []string `json:"readabilityIssues"`
	Suggestions       []string `json:"suggestions"`
}

// Design is one poster variant. HTML may be known before the rendered image.
type Design struct {
	ID              string           `json:"_id,omitempty"`
	VariantNumber   int              `json:"variantNumber"`
	HTML            string           `json:"html"`
	PreviewURL      string           `json:"previewUrl,omitempty"`
	ImageURL        string           `json:"imageUrl,omitempty"`
	ImageKey        string           `json:"imageKey,omitempty"`
	Dimensions      *Dimensions      `json:"dimensions,omitempty"`
	Format          string           `json:"format,omitempty"`
	ValidationScore *ValidationScore `json:"validationScore,omitempty"`
}

// Clone returns a deep copy of d.
func (d Design) Clone() Design {
	if d.Dimensions != nil {
		dim := *d.Dimensions
		d.Dimensions = &dim
	}
	if d.ValidationScore != nil {
		vs := ValidationScore{
			ReadabilityIssues: slices.Clone(d.ValidationScore.ReadabilityIssues),
			Suggestions:       slices.Clone(d.ValidationScore.Suggestions),
		}
		d.ValidationScore = &vs
	}
	return d
}

// CloneDesigns deep-copies a design list. nil stays nil.
func CloneDesigns(designs []Design) []Design {
	if designs == nil {
		return nil
	}
	out := make([]Design, len(designs))
	for i, d := range designs {
		out[i] = d.Clone()
	}
	return out
}

// UpsertDesign returns a new list with d replacing any design of the same variant, sorted by variant.
func UpsertDesign(designs []Design, d Design) []Design {
	out := make([]Design, 0, len(designs)+1)
	for _, existing := range designs {
		if existing.VariantNumber != d.VariantNumber {
			out = append(out, existing.Clone())
		}
	}
	out = append(out, d.Clone())
	SortDesigns(out)
	return out
}

// SortDesigns orders designs by ascending variant number.
func SortDesigns(designs []Design) {
	sort.SliceStable(designs, func(i, j int) bool {
		return designs[i].VariantNumber < designs[j].VariantNumber
	})
}

// FindDesign returns the index of the design for variant, or -1.
func FindDesign(designs []Design, variant int) int {
	return slices.IndexFunc(designs, func(d Design) bool { return d.VariantNumber == variant })
}

type OriginalImage struct {
	URL              string `json:"url"`
	OriginalFilename string `json:"originalFilename"`
	Size             int64  `json:"size"`
}

// StepInfo is the server's per-step bookkeeping on a job record.
type StepInfo struct {
	Step        ProcessingStep `json:"step"`
	Status      string         `json:"status"`
	CompletedAt *time.Time     `json:"completedAt"`
	Duration    *float64       `json:"duration"`
}

// Job is the server job record plus the client-side progress fields the session keeps alongside it.
type Job struct {
	ID              string           `json:"id"`
	Status          JobStatus        `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	Transcription   string           `json:"transcription,omitempty"`
	CopyContent     *CopyContent     `json:"copyContent,omitempty"`
	OriginalImage   *OriginalImage   `json:"originalImage,omitempty"`
	DesignCount     int              `json:"designCount,omitempty"`
	ProcessingSteps []StepInfo       `json:"processingSteps,omitempty"`
	Designs         []Design         `json:"designs"`
	ProcessedImages []ProcessedImage `json:"processedImages"`
	PosterSettings  *PosterSettings  `json:"posterSettings,omitempty"`
	Error           string           `json:"error,omitempty"`

	CurrentStep    ProcessingStep   `json:"currentStep,omitempty"`
	CompletedSteps []ProcessingStep `json:"completedSteps,omitempty"`
	Progress       int              `json:"progress,omitempty"`
}

// NewJob returns an empty job record for id in the created state.
func NewJob(id string, now time.Time) *Job {
	return &Job{
		ID:              id,
		Status:          StatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
		Designs:         []Design{},
		ProcessedImages: []ProcessedImage{},
	}
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.CopyContent != nil {
		cc := *j.CopyContent
		c.CopyContent = &cc
	}
	if j.OriginalImage != nil {
		oi := *j.OriginalImage
		c.OriginalImage = &oi
	}
	if j.PosterSettings != nil {
		c.PosterSettings = j.PosterSettings.Clone()
	}
	c.ProcessingSteps = slices.Clone(j.ProcessingSteps)
	c.Designs = CloneDesigns(j.Designs)
	c.ProcessedImages = slices.Clone(j.ProcessedImages)
	c.CompletedSteps = slices.Clone(j.CompletedSteps)
	return &c
}

// JobUpdate is a partial update of a [Job]. nil fields leave the job unchanged.
type JobUpdate struct {
	Status          *JobStatus
	CurrentStep     *ProcessingStep
	CompletedSteps  []ProcessingStep
	Progress        *int
	Transcription   *string
	CopyContent     *CopyContent
	Designs         []Design
	ProcessedImages []ProcessedImage
	Error           *string
}

// Apply merges u into j and bumps UpdatedAt.
func (j *Job) Apply(u JobUpdate, now time.Time) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.CurrentStep != nil {
		j.CurrentStep = *u.CurrentStep
	}
	if u.CompletedSteps != nil {
		j.CompletedSteps = slices.Clone(u.CompletedSteps)
	}
	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.Transcription != nil {
		j.Transcription = *u.Transcription
	}
	if u.CopyContent != nil {
		cc := *u.CopyContent
		j.CopyContent = &cc
	}
	if u.Designs != nil {
		j.Designs = CloneDesigns(u.Designs)
		j.DesignCount = len(j.Designs)
	}
	if u.ProcessedImages != nil {
		j.ProcessedImages = slices.Clone(u.ProcessedImages)
	}
	if u.Error != nil {
		j.Error = *u.Error
	}
	j.UpdatedAt = now
}

// Ptr returns a pointer to v. Convenience for building a [JobUpdate].
func Ptr[T any](v T) *T { return &v }
