// Package templating renders plain-text airport briefings with text/template.
package templating

import (
	"github.com/yegors/co-notam/internal/config"
	"github.com/yegors/co-notam/pkg/logger"
)

// Service provides the main templating functionality
type Service struct {
	engine       *Engine
	templatePath string
	logger       *logger.Logger
}

// NewService creates a new templating service
func NewService(cfg config.TemplatingConfig, logger *logger.Logger) *Service {
	return &Service{
		engine:       NewEngine(cfg.ReloadTemplates, logger),
		templatePath: cfg.BriefingTemplatePath,
		logger:       logger.Named("templating-service"),
	}
}

// RenderBriefing renders the configured airport briefing template
func (s *Service) RenderBriefing(context *TemplateContext) (string, error) {
	return s.engine.RenderTemplate(s.templatePath, context, DefaultFormattingOptions())
}

// RenderCompactBriefing renders the briefing with per-category truncation
func (s *Service) RenderCompactBriefing(context *TemplateContext) (string, error) {
	return s.engine.RenderTemplate(s.templatePath, context, CompactFormattingOptions())
}

// RenderTemplate renders a template with custom formatting options
func (s *Service) RenderTemplate(templatePath string, context *TemplateContext, opts FormattingOptions) (string, error) {
	return s.engine.RenderTemplate(templatePath, context, opts)
}

// ReloadTemplate forces the briefing template to be reloaded from file
func (s *Service) ReloadTemplate() error {
	if s.templatePath == "" {
		return nil
	}
	return s.engine.ReloadTemplate(s.templatePath)
}

// ClearCache clears the template cache
func (s *Service) ClearCache() {
	s.engine.ClearCache()
}

// GetCacheStats returns statistics about the template cache
func (s *Service) GetCacheStats() map[string]any {
	return s.engine.GetCacheStats()
}
