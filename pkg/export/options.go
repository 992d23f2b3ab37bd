package export

// Option configures an export.
type Option func(*Config)

// Config controls what Export produces.
type Config struct {
	// Sections
	IncludeSnapshot     bool
	IncludeDifferential bool

	// Output
	Pretty bool

	// Validation
	Validate bool
	Force    bool
	Strict   bool

	// Original is a previously exported document whose hand-authored
	// content is folded into the export.
	Original []byte
}

// DefaultConfig returns the default configuration: both sections, pretty
// printed, validated.
func DefaultConfig() *Config {
	return &Config{
		IncludeSnapshot:     true,
		IncludeDifferential: true,
		Pretty:              true,
		Validate:            true,
	}
}

// WithSnapshot includes or omits the snapshot section.
func WithSnapshot(include bool) Option {
	return func(c *Config) {
		c.IncludeSnapshot = include
	}
}

// WithDifferential includes or omits the differential section.
func WithDifferential(include bool) Option {
	return func(c *Config) {
		c.IncludeDifferential = include
	}
}

// WithPretty indents the output.
func WithPretty(pretty bool) Option {
	return func(c *Config) {
		c.Pretty = pretty
	}
}

// WithValidation runs the profile rules before export.
func WithValidation(enable bool) Option {
	return func(c *Config) {
		c.Validate = enable
	}
}

// WithForce exports even when validation reports errors.
func WithForce(force bool) Option {
	return func(c *Config) {
		c.Force = force
	}
}

// WithStrict treats slicing problems as errors.
func WithStrict(strict bool) Option {
	return func(c *Config) {
		c.Strict = strict
	}
}

// WithOriginal reconciles the export with a previously exported document.
func WithOriginal(original []byte) Option {
	return func(c *Config) {
		c.Original = original
	}
}
