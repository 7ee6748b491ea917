package translator

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/docgraph/internal/errors"
	"github.com/rohankatakam/docgraph/internal/graph"
)

// Translation is the statement plan for one document, in emission order
type Translation struct {
	// Nodes holds reference merges and one merge per document node, children before their parent.
	// Document-node merges return the internal node id as column "id".
	Nodes []graph.Statement
	// Relationships link parents to children and referenced nodes
	Relationships []graph.Statement
	// Properties holds one SET statement per document node
	Properties []graph.Statement
	// Labels lists the distinct labels encountered, first-seen order
	Labels []string
	// Skipped records nested fields dropped for lacking an identity
	Skipped []*errors.Error

	seen map[string]bool
}

// NewTranslation creates an empty plan
func NewTranslation() *Translation {
	return &Translation{seen: map[string]bool{}}
}

// AddLabel records label once, keeping first-seen order
func (t *Translation) AddLabel(label string) {
	if t.seen == nil {
		t.seen = map[string]bool{}
	}
	if !t.seen[label] {
		t.seen[label] = true
		t.Labels = append(t.Labels, label)
	}
}

// Translator turns documents into graph statements
type Translator struct {
	logger logrus.FieldLogger
}

// New creates a translator that reports skipped subtrees to logger
func New(logger logrus.FieldLogger) *Translator {
	return &Translator{logger: logger.WithField("component", "translator")}
}

// Translate builds the statement plan for doc, a node of label identified by uid.
// metadata is merged into the properties of every node the document produces.
func (t *Translator) Translate(doc Document, label string, uid any, metadata map[string]any) (*Translation, error) {
	out := NewTranslation()
	if err := t.buildNode(out, doc, label, uid, metadata); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Translator) buildNode(out *Translation, doc Document, label string, uid any, metadata map[string]any) error {
	out.AddLabel(label)

	props := map[string]any{IdentityKey: uid}
	for k, v := range metadata {
		props[k] = v
	}

	for _, field := range Classify(doc) {
		if err := t.ApplyField(out, label, uid, field, props, metadata); err != nil {
			return err
		}
	}

	merge, err := graph.MergeNode(label, uid)
	if err != nil {
		return errors.ValidationErrorf("translate %s: %v", label, err)
	}
	out.Nodes = append(out.Nodes, merge)

	set, err := graph.SetProperties(label, uid, props)
	if err != nil {
		return errors.ValidationErrorf("translate %s: %v", label, err)
	}
	out.Properties = append(out.Properties, set)
	return nil
}

// ApplyField translates one classified field of the node (label, uid).
// Property-shaped fields are written into props; structural fields append statements to out.
func (t *Translator) ApplyField(out *Translation, label string, uid any, field Field, props, metadata map[string]any) error {
	switch field.Kind {
	case KindReference:
		merge, err := graph.MergeReference(field.RefLabel, field.Value)
		if err != nil {
			return errors.ValidationErrorf("reference %s: %v", field.Key, err)
		}
		out.AddLabel(field.RefLabel)
		out.Nodes = append(out.Nodes, merge)
		return t.relate(out, label, field.RefLabel, uid, field.Value)

	case KindSkip:
		skip := errors.TranslationSkipf("field %q of %s dropped: %s", field.Key, label, field.Reason).
			WithContext("label", label).
			WithContext("field", field.Key)
		out.Skipped = append(out.Skipped, skip)
		t.logger.WithFields(logrus.Fields{
			"label": label,
			"field": field.Key,
		}).Warn(field.Reason)
		return nil

	case KindGeoPair:
		props[LatKey] = field.Lat
		props[LonKey] = field.Lon
		return nil

	case KindNested:
		if err := t.relate(out, label, field.Key, uid, field.NestedUID); err != nil {
			return err
		}
		return t.buildNode(out, field.Nested, field.Key, field.NestedUID, metadata)

	case KindArrayOfObjects:
		// Elements share the parent's identity; the synthetic label keeps them apart.
		for _, el := range field.Elements {
			childLabel := fmt.Sprintf("%s%d", field.Key, el.Index)
			if err := t.relate(out, label, childLabel, uid, uid); err != nil {
				return err
			}
			if err := t.buildNode(out, el.Doc, childLabel, uid, metadata); err != nil {
				return err
			}
		}
		return nil

	case KindMultiArray:
		for _, leaf := range field.Leaves {
			props[leaf.Name] = leaf.Value
		}
		return nil

	default:
		props[field.Key] = field.Value
		return nil
	}
}

func (t *Translator) relate(out *Translation, parentLabel, childLabel string, parentUID, childUID any) error {
	rel, err := graph.MergeRelationship(parentLabel, childLabel, parentUID, childUID)
	if err != nil {
		return errors.ValidationErrorf("relationship %s -> %s: %v", parentLabel, childLabel, err)
	}
	out.Relationships = append(out.Relationships, rel)
	return nil
}

// SortedKeys returns the keys of m in order
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
