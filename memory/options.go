package memory

type (
	Options struct {
		oomHandler func(error)
	}

	Option func(*Options)
)

func defaultOptions() *Options {
	return &Options{}
}

/*
WithOOMHandler sets a callback which is called (synchronously, before Alloc
returns) every time an allocation fails because of out-of-memory condition.
*/
func WithOOMHandler(f func(error)) Option {
	return func(o *Options) {
		o.oomHandler = f
	}
}
