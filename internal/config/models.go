package config

import "fmt"

// ModelsConfig names the provider model used by each selection tier.
//
// Chat and image analysis are ranked across Fast / Balanced / Pro; every other
// capability uses its own dedicated model regardless of flags.
type ModelsConfig struct {
	Fast       string `yaml:"fast"`       // low latency default
	Balanced   string `yaml:"balanced"`   // live-search grounded answers
	Pro        string `yaml:"pro"`        // deep reasoning and multimodal input
	Advice     string `yaml:"advice"`     // structured job settings advice
	Transcribe string `yaml:"transcribe"` // speech to text
	Image      string `yaml:"image"`      // image generation
	ImageEdit  string `yaml:"image_edit"` // image editing
	Video      string `yaml:"video"`      // video generation
}

// DefaultModels returns the stock Gemini / Veo model lineup.
func DefaultModels() ModelsConfig {
	return ModelsConfig{
		Fast:       "gemini-2.5-flash-lite",
		Balanced:   "gemini-3-flash-preview",
		Pro:        "gemini-3-pro-preview",
		Advice:     "gemini-3-flash-preview",
		Transcribe: "gemini-3-flash-preview",
		Image:      "gemini-3-pro-image-preview",
		ImageEdit:  "gemini-2.5-flash-image",
		Video:      "veo-3.1-fast-generate-preview",
	}
}

// Validate ensures every tier names a model.
func (m ModelsConfig) Validate() error {
	fields := map[string]string{
		"fast":       m.Fast,
		"balanced":   m.Balanced,
		"pro":        m.Pro,
		"advice":     m.Advice,
		"transcribe": m.Transcribe,
		"image":      m.Image,
		"image_edit": m.ImageEdit,
		"video":      m.Video,
	}
	for name, v := range fields {
		if v == "" {
			return fmt.Errorf("models.%s is empty", name)
		}
	}
	return nil
}
