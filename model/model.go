package model

// Descriptor identifies one speech-model variant. The set is fixed at
// process start; descriptors are immutable values.
type Descriptor struct {
	ID          string
	DisplayName string
	FileName    string
	URL         string
	SizeMB      int
}

var catalog = []Descriptor{
	{
		ID:          "small",
		DisplayName: "Small (fast)",
		FileName:    "ggml-small.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		SizeMB:      466,
	},
	{
		ID:          "large",
		DisplayName: "Large (accurate)",
		FileName:    "ggml-large-v3-turbo.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo.bin",
		SizeMB:      1600,
	},
}

// Catalog returns a copy of the built-in model presets.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks up a catalog entry by its id.
func ByID(id string) (Descriptor, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}
