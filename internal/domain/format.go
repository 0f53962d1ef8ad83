package domain

// Quality is the caller's preference for which format variant to fetch.
type Quality string

const (
	QualityAuto  Quality = "auto"
	QualityBest  Quality = "best"
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
	Quality360p  Quality = "360p"
	QualityWorst Quality = "worst"
)

// PostProcessingKind selects the optional second pass after a fetch.
type PostProcessingKind string

const (
	PostProcessNone  PostProcessingKind = "none"
	PostProcessAudio PostProcessingKind = "audio"
	PostProcessMP4   PostProcessingKind = "mp4"
)

// FormatDescriptor is one fetchable variant of a media resource, resolved by
// the extraction collaborator before a task is created. Read-only here.
type FormatDescriptor struct {
	FormatID string  `json:"format_id"`
	URL      string  `json:"url"`
	Ext      string  `json:"ext"`
	Quality  string  `json:"quality,omitempty"`
	Filesize int64   `json:"filesize,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	Bitrate  float64 `json:"tbr,omitempty"`
	VCodec   string  `json:"vcodec,omitempty"`
	ACodec   string  `json:"acodec,omitempty"`
}
