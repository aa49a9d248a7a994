// Package wire implements the JSON request/response/error vocabulary
// spec.md §6 and §7 describe: tagged Request decoding, the
// `[query-name, [[tuple, diff], ...]]` response frame, and the Fault
// error category every client-facing failure is classified into.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/registry"
	"github.com/wbrown/hectordb/source"
)

// Category is one of spec.md §7's five wire-level error kinds.
type Category string

const (
	Conflict    Category = "conflict"
	NotFound    Category = "not-found"
	Unsupported Category = "unsupported"
	Internal    Category = "fault"
	Client      Category = "client"
)

// Fault is the uniform shape every error reported to a client takes.
type Fault struct {
	Category Category
	Message  string
	cause    error
}

func (f *Fault) Error() string { return fmt.Sprintf("%s: %s", f.Category, f.Message) }

func (f *Fault) Unwrap() error { return f.cause }

// MarshalJSON renders the Fault as the `{category, message}` object
// spec.md §7 describes, the shape a client sees for any failed request.
func (f *Fault) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Category Category `json:"category"`
		Message  string   `json:"message"`
	}{Category: f.Category, Message: f.Message})
}

// NewFault builds a Fault directly, for call sites (malformed JSON,
// unknown source kind, unknown semantics) that know their category
// without needing to classify an underlying error.
func NewFault(cat Category, format string, args ...any) *Fault {
	return &Fault{Category: cat, Message: fmt.Sprintf(format, args...)}
}

// Classify maps an internal error to a Fault. Internal packages
// (attribute, registry, arrangement, source) raise their own typed
// sentinel errors rather than importing wire themselves -- wire would
// otherwise have to sit underneath every package that can fail a
// request, inverting the dependency direction the rest of the module
// uses (implement/hector hang their cross-package hooks off function
// values for the same reason). Classify is the one place that
// re-expresses those sentinels as the wire-level category, so transport
// never has to guess at a raw error's shape.
func Classify(err error) *Fault {
	if err == nil {
		return nil
	}
	var already *Fault
	if errors.As(err, &already) {
		return already
	}

	var attrConflict *attribute.ErrConflict
	if errors.As(err, &attrConflict) {
		return &Fault{Category: Conflict, Message: err.Error(), cause: err}
	}
	var regConflict *registry.ErrConflict
	if errors.As(err, &regConflict) {
		return &Fault{Category: Conflict, Message: err.Error(), cause: err}
	}
	var notFound *registry.ErrNotFound
	if errors.As(err, &notFound) {
		return &Fault{Category: NotFound, Message: err.Error(), cause: err}
	}
	var cycle *registry.ErrCycle
	if errors.As(err, &cycle) {
		return &Fault{Category: Client, Message: err.Error(), cause: err}
	}
	var unknownInput *source.ErrUnknownInput
	if errors.As(err, &unknownInput) {
		return &Fault{Category: NotFound, Message: err.Error(), cause: err}
	}
	return &Fault{Category: Internal, Message: err.Error(), cause: err}
}
