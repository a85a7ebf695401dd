package runtime

// Handler runs one job type. Implementations report their own terminal
// outcome through the Context; a returned error is a safety net the worker
// converts into a failure.
type Handler interface {
	JobType() string
	Run(jc *Context) error
}

type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) {
	r.handlers[h.JobType()] = h
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	h, ok := r.handlers[jobType]
	return h, ok
}
