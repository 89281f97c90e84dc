package fingerprint

// Option configures a Model.
type Option func(*Model)

// WithSeparator sets the string placed between components.
func WithSeparator(sep string) Option {
	return func(m *Model) {
		if sep != "" {
			m.separator = sep
		}
	}
}

// WithPrecision sets the decimals kept per component; -1 keeps the shortest exact form.
func WithPrecision(p int) Option {
	return func(m *Model) {
		if p >= -1 {
			m.precision = p
		}
	}
}
