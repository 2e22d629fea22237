package config

// Config is the root configuration for a tuning run.
type Config struct {
	LogLevel   string          `yaml:"log_level"`
	Data       Data            `yaml:"data"`
	Calculator Calculator      `yaml:"calculator"`
	Objective  Objective       `yaml:"objective"`
	Evaluators []EvaluatorSpec `yaml:"evaluators"`
	Search     Search          `yaml:"search"`
}

// Data locates the input table.
type Data struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"` // csv or excel; inferred from the extension when empty
	Sheet  string `yaml:"sheet,omitempty"`
}

// Calculator configures the scoring engine.
type Calculator struct {
	SelectedColumns []string          `yaml:"selected_columns"`
	EquationType    string            `yaml:"equation_type"` // product, sum, free_style, json, log_pca
	Equation        string            `yaml:"equation,omitempty"`
	Formulas        map[string]string `yaml:"formulas,omitempty"`
	FormulaOrder    []string          `yaml:"formula_order,omitempty"`
	Delimiter       string            `yaml:"formula_delimiter,omitempty"`
	GroupWeights    *GroupWeights     `yaml:"group_weights,omitempty"`
}

// GroupWeights derives per-group averaging weights from a column: the
// weight of a group is the sum of the column's values within it.
type GroupWeights struct {
	GroupBy string `yaml:"groupby"`
	Column  string `yaml:"column"`
}

// Objective configures the search objective and its weight space.
type Objective struct {
	Direction  string `yaml:"direction"` // minimize or maximize
	Formula    string `yaml:"formula"`
	Power      *bool  `yaml:"power,omitempty"` // defaults to true
	FirstOrder bool   `yaml:"first_order"`
	Dirichlet  bool   `yaml:"dirichlet"`
	WeightsNum int    `yaml:"weights_num,omitempty"`
	Bounds     Bounds `yaml:"bounds"`
	StudyName  string `yaml:"study_name,omitempty"`
	StudyPath  string `yaml:"study_path,omitempty"`
	SaveStudy  *bool  `yaml:"save_study,omitempty"` // defaults to true
}

// Bounds holds the per-family weight bounds. Power and free-style bounds
// accept both scalar and per-dimension forms: a single-element list is
// broadcast across dimensions.
type Bounds struct {
	PowerLower []float64 `yaml:"power_lower,omitempty"`
	PowerUpper []float64 `yaml:"power_upper,omitempty"`

	FirstOrderLower float64 `yaml:"first_order_lower,omitempty"`
	FirstOrderUpper float64 `yaml:"first_order_upper,omitempty"`

	FirstOrderWithScales bool    `yaml:"first_order_with_scales,omitempty"`
	ScaleLowerSpan       float64 `yaml:"scale_lower_span,omitempty"`
	ScaleUpperSpan       float64 `yaml:"scale_upper_span,omitempty"`
	MaxMinScaleRatio     float64 `yaml:"max_min_scale_ratio,omitempty"`

	FreeStyleLower []float64 `yaml:"free_style_lower,omitempty"`
	FreeStyleUpper []float64 `yaml:"free_style_upper,omitempty"`

	BaseWeights            []float64 `yaml:"base_weights,omitempty"`
	BaseWeightsOffsetRatio float64   `yaml:"base_weights_offset_ratio,omitempty"`

	PCALower float64 `yaml:"pca_lower,omitempty"`
	PCAUpper float64 `yaml:"pca_upper,omitempty"`
}

// EvaluatorSpec configures one metric evaluator. List order in the config
// is the order values appear in the per-trial targets list.
type EvaluatorSpec struct {
	Kind           string   `yaml:"kind"`
	TargetColumn   string   `yaml:"target_column,omitempty"`
	GroupBy        string   `yaml:"groupby,omitempty"`
	MaskColumn     string   `yaml:"mask_column,omitempty"`
	Hyperparameter *float64 `yaml:"hyperparameter,omitempty"`
	Property       string   `yaml:"property,omitempty"`

	// Frequency sampler settings, used by the woauc evaluator only.
	SampleSize       int      `yaml:"sample_size,omitempty"`
	SliceFrom        *float64 `yaml:"slice_from,omitempty"`
	SliceTo          *float64 `yaml:"slice_to,omitempty"`
	LogScale         bool     `yaml:"log_scale,omitempty"`
	LaplaceSmoothing bool     `yaml:"laplace_smoothing,omitempty"`
}

// Search configures the trial budget and parallelism.
type Search struct {
	NTrials int `yaml:"n_trials"`
	Workers int `yaml:"workers"`
}

// PowerEnabled reports whether the power component is enabled (default true).
func (o *Objective) PowerEnabled() bool {
	return o.Power == nil || *o.Power
}

// SaveStudyEnabled reports whether study artifacts are kept (default true).
func (o *Objective) SaveStudyEnabled() bool {
	return o.SaveStudy == nil || *o.SaveStudy
}
