package callcache

// Resource groups related tokens under one prefix, e.g. a "user" resource
// with "get" and "list" calls named user_get and user_list.
type Resource struct {
	r    *Registry
	name string
}

// Resource returns the group called name in r.
func (r *Registry) Resource(name string) Resource {
	return Resource{r: r, name: name}
}

func (res Resource) Name() string { return res.name }

// Define creates a token named "<resource>_<api>". cfg.Name is ignored.
func Define[V any](res Resource, api string, cfg Config[V], p Producer[V]) *Token[V] {
	cfg.Name = res.name + "_" + api
	return New(res.r, cfg, p)
}
