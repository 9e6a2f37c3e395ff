package matcher

// Prototype is a labelled reference feature vector. Features are stored raw;
// scaling is derived from the whole prototype set at load time.
type Prototype struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Polymer     string            `json:"polymer"`
	Description string            `json:"description,omitempty"`
	Source      string            `json:"source,omitempty"`
	Features    []float64         `json:"features"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// PrototypeScore captures how close the analysed spectrum is to one prototype.
type PrototypeScore struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
	Weight   float64 `json:"weight"`
	Source   string  `json:"source,omitempty"`
}

// Prediction summarises the neighbours that share a label.
type Prediction struct {
	Label         string            `json:"label"`
	Polymer       string            `json:"polymer"`
	Description   string            `json:"description,omitempty"`
	Confidence    float64           `json:"confidence"`
	AverageDist   float64           `json:"averageDistance"`
	Support       int               `json:"support"`
	TopPrototypes []PrototypeScore  `json:"topPrototypes"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ModelStats exposes metadata about the loaded prototype collection.
type ModelStats struct {
	PrototypeCount int              `json:"prototypeCount"`
	LabelCount     int              `json:"labelCount"`
	FeatureCount   int              `json:"featureCount"`
	K              int              `json:"k"`
	Labels         []ModelLabelStat `json:"labels"`
	UsingExample   bool             `json:"usingExample"`
}

type ModelLabelStat struct {
	Label      string `json:"label"`
	Polymer    string `json:"polymer"`
	Prototypes int    `json:"prototypes"`
}
