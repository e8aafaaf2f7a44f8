package compare

// Descriptor is the static node schema the host reads to build its menus and wire inputs.
type Descriptor struct {
	Name        string      `json:"name" yaml:"name"`
	DisplayName string      `json:"displayName" yaml:"displayName"`
	Category    string      `json:"category" yaml:"category"`
	Function    string      `json:"function" yaml:"function"`
	OutputNode  bool        `json:"outputNode" yaml:"outputNode"`
	Inputs      InputSchema `json:"inputs" yaml:"inputs"`
	ReturnTypes []string    `json:"returnTypes" yaml:"returnTypes"`
	ReturnNames []string    `json:"returnNames" yaml:"returnNames"`
	Event       string      `json:"event" yaml:"event"`
}

type InputSchema struct {
	Required []InputSpec `json:"required" yaml:"required"`
	Optional []InputSpec `json:"optional" yaml:"optional"`
	Hidden   []InputSpec `json:"hidden" yaml:"hidden"`
}

type InputSpec struct {
	Name    string   `json:"name" yaml:"name"`
	Type    string   `json:"type" yaml:"type"`
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
	Default string   `json:"default,omitempty" yaml:"default,omitempty"`
}

func Describe() Descriptor {
	modes := make([]string, 0, len(BlendModes))
	for _, m := range BlendModes {
		modes = append(modes, string(m))
	}

	return Descriptor{
		Name:        "EsesImageCompare",
		DisplayName: "Eses Image Compare",
		Category:    "Eses Nodes/Image Utilities",
		Function:    "execute",
		OutputNode:  true,
		Inputs: InputSchema{
			Required: []InputSpec{
				{Name: "image_a", Type: "IMAGE"},
			},
			Optional: []InputSpec{
				{Name: "image_b", Type: "IMAGE"},
			},
			Hidden: []InputSpec{
				{Name: "prompt", Type: "PROMPT"},
				{Name: "extra_pnginfo", Type: "EXTRA_PNGINFO"},
				{Name: "unique_id", Type: "UNIQUE_ID"},
				{Name: "blend_mode", Type: "COMBO", Options: modes, Default: string(BlendNormal)},
			},
		},
		ReturnTypes: []string{"IMAGE", "MASK"},
		ReturnNames: []string{"image_a", "diff_mask"},
		Event:       PreviewEvent,
	}
}
