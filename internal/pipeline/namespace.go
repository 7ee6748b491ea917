package pipeline

import (
	"strings"

	"github.com/rohankatakam/docgraph/internal/errors"
)

// Namespace is a "database.collection" pair from the change stream.
// The collection becomes the node label.
type Namespace struct {
	Database   string
	Collection string
}

// ParseNamespace splits on the first dot. The database part is lower-cased.
func ParseNamespace(ns string) (Namespace, error) {
	db, coll, ok := strings.Cut(ns, ".")
	if !ok || db == "" || coll == "" {
		return Namespace{}, errors.ValidationErrorf("namespace %q is not of the form database.collection", ns)
	}
	return Namespace{Database: strings.ToLower(db), Collection: coll}, nil
}

// Label returns the node label for documents of this namespace
func (n Namespace) Label() string {
	return n.Collection
}

func (n Namespace) String() string {
	return n.Database + "." + n.Collection
}
