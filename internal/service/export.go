package service

import (
	"context"

	"github.com/tpcreator/tpagent/internal/domain"
	"github.com/tpcreator/tpagent/internal/export"
)

// Export renders the completed session id in the named format.
func (s *Service) Export(ctx context.Context, id, format string) (export.Artifact, error) {
	f, err := domain.ParseExportFormat(format)
	if err != nil {
		return export.Artifact{}, err
	}
	if err := ctx.Err(); err != nil {
		return export.Artifact{}, domain.WrapError(domain.KindTimeout, "export canceled", err)
	}
	return s.exporter.Resolve(id, f)
}

// ExportLinks returns the export references of session id.
func (s *Service) ExportLinks(id string) domain.ExportLinks {
	return s.exporter.Links(id)
}
