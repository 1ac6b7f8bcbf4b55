package reconcile

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// defaultsFile is the on-disk layout of the placeholder values:
//
//	defaults:
//	  property_address: "Enter address"
//	  tax_amount: 0
type defaultsFile struct {
	Defaults map[string]any `yaml:"defaults"`
}

// LoadDefaults reads placeholder values from a YAML file. An empty path
// yields no defaults.
func LoadDefaults(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: read defaults %s", path)
	}
	var f defaultsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "reconcile: parse defaults %s", path)
	}
	if f.Defaults == nil {
		f.Defaults = map[string]any{}
	}
	return f.Defaults, nil
}

// Extractor turns an uploaded document into form fields. The document
// model is an external collaborator.
type Extractor interface {
	ExtractFields(ctx context.Context, data []byte, mimeType string) (map[string]any, error)
}

// IngestDocument extracts fields from a document and applies each one under
// the overwrite rule. Extracted values do not enter the snapshot, so a later
// provider fill cannot overwrite a document-filled value unless it equals the
// field's default.
func IngestDocument(ctx context.Context, ex Extractor, data []byte, mimeType string, st State) (Outcome, error) {
	fields, err := ex.ExtractFields(ctx, data, mimeType)
	if err != nil {
		return Outcome{}, eris.Wrap(err, "reconcile: extract document fields")
	}
	out := ApplyAll(st, fields, OriginDocument)
	zap.L().Debug("reconcile: document ingested",
		zap.String("mime_type", mimeType),
		zap.Int("extracted", len(fields)),
		zap.Int("applied", len(out.Applied)),
	)
	return out, nil
}
