package tyco

// ValidatorFunc inspects a freshly populated instance and rejects it by
// returning a non-nil error. Hooks run after field coercion and before
// the instance is indexed, so field values still carry unexpanded
// template text.
type ValidatorFunc func(inst *Instance) error

type loadOptions struct {
	strictGlobals bool
	validators    map[string][]ValidatorFunc
}

// Option adjusts the behavior of Load.
type Option func(*loadOptions)

// StrictGlobals makes a global declared in more than one file an error
// instead of letting later files overwrite earlier ones. A duplicate
// within one file is always an error.
func StrictGlobals() Option {
	return func(o *loadOptions) { o.strictGlobals = true }
}

// WithValidator registers a validator hook for every instance of the
// named struct. Multiple hooks for one struct run in registration order.
func WithValidator(structName string, fn ValidatorFunc) Option {
	return func(o *loadOptions) {
		if o.validators == nil {
			o.validators = map[string][]ValidatorFunc{}
		}
		o.validators[structName] = append(o.validators[structName], fn)
	}
}
