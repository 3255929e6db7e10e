package models

// Identity is the already-authenticated actor behind a mutating operation.
// The engine does not authenticate; it only records who acted.
type Identity struct {
	Username string `json:"username" validate:"required"`
	Group    string `json:"group"`
}

// Form names a document schema cases and work items can be started or
// completed with. The engine treats document payloads as opaque; schema
// validation happens at the API boundary.
type Form struct {
	Slug   string         `json:"slug" validate:"required,lowercase"`
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema,omitempty"`
}
