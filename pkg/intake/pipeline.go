package intake

import (
	"fmt"

	"github.com/neurotrace/intake/pkg/common/config"
	"github.com/neurotrace/intake/pkg/common/logger"
	"github.com/neurotrace/intake/pkg/extraction"
	"github.com/neurotrace/intake/pkg/extraction/document"
	"github.com/neurotrace/intake/pkg/extraction/tabular"
	"github.com/neurotrace/intake/pkg/schema"
)

// Pipeline is the extraction orchestrator together with the alias table its
// tabular extractor resolves column names against.
type Pipeline struct {
	Orchestrator *extraction.Orchestrator
	Resolver     *schema.Resolver
}

// NewPipeline assembles the tabular and PDF collaborators with the alias
// table named by cfg.AliasFile.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	resolver, err := schema.LoadAliases(cfg.AliasFile)
	if err != nil {
		return nil, fmt.Errorf("loading aliases: %w", err)
	}
	if cfg.AliasFile != "" {
		logger.Log.WithFields(map[string]interface{}{
			"file":    cfg.AliasFile,
			"aliases": resolver.Len(),
		}).Info("loaded field aliases")
	}

	return &Pipeline{
		Orchestrator: extraction.NewOrchestrator(
			extraction.NewTabularExtractor(tabular.NewParser(), resolver),
			extraction.NewTextExtractor(document.NewReader(cfg.MaxDocumentPages)),
		),
		Resolver: resolver,
	}, nil
}
