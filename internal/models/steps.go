package models

// ProcessingStep identifies one stage of the remote poster pipeline.
type ProcessingStep string

const (
	StepTranscription       ProcessingStep = "transcription"
	StepCopyGeneration      ProcessingStep = "copy_generation"
	StepPhotoshootTransform ProcessingStep = "photoshoot_transform"
	StepSharpExpansion      ProcessingStep = "sharp_expansion"
	StepImageBlending       ProcessingStep = "image_blending"
	StepUpscaling           ProcessingStep = "upscaling"
	StepHTMLGeneration      ProcessingStep = "html_generation"
	StepHTMLToImage         ProcessingStep = "html_to_image"
)

// TotalSteps is the number of pipeline stages used for stream progress.
const TotalSteps = 8

// AllSteps lists every stage in pipeline order.
var AllSteps = []ProcessingStep{
	StepTranscription,
	StepCopyGeneration,
	StepPhotoshootTransform,
	StepSharpExpansion,
	StepImageBlending,
	StepUpscaling,
	StepHTMLGeneration,
	StepHTMLToImage,
}

var stepLabels = map[ProcessingStep][2]string{
	StepTranscription:       {"Transcription", "Converting audio to text"},
	StepCopyGeneration:      {"Copy Generation", "Generating marketing copy"},
	StepPhotoshootTransform: {"Photoshoot Transform", "Creating professional product photo"},
	StepSharpExpansion:      {"Sharp Expansion", "Expanding image canvas"},
	StepImageBlending:       {"Image Blending", "Blending product with background"},
	StepUpscaling:           {"Upscaling", "Enhancing image resolution"},
	StepHTMLGeneration:      {"HTML Generation", "Generating poster designs"},
	StepHTMLToImage:         {"Rendering", "Converting HTML designs to high-quality images"},
}

// Index returns the step's position in [AllSteps], or -1 for unknown steps.
func (s ProcessingStep) Index() int {
	for i, step := range AllSteps {
		if step == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the known pipeline stages.
func (s ProcessingStep) Valid() bool { return s.Index() >= 0 }

func (s ProcessingStep) Title() string {
	if l, ok := stepLabels[s]; ok {
		return l[0]
	}
	return string(s)
}

func (s ProcessingStep) Description() string {
	return stepLabels[s][1]
}

// ImageType returns the intermediate image kind a stage produces.
// Stages that produce no image return false.
func (s ProcessingStep) ImageType() (ImageType, bool) {
	switch s {
	case StepPhotoshootTransform:
		return ImagePhotoshoot, true
	case StepSharpExpansion:
		return ImageSharpExpanded, true
	case StepImageBlending:
		return ImageBlended, true
	case StepUpscaling:
		return ImageUpscaled, true
	default:
		return "", false
	}
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	StatusCreated    JobStatus = "created"
	StatusUploaded   JobStatus = "uploaded"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further status transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s JobStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
