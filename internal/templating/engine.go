package templating

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/yegors/co-notam/pkg/logger"
)

// BuiltinBriefingTemplate is the key of the compiled-in briefing template
const BuiltinBriefingTemplate = "builtin:briefing"

const builtinBriefing = `AIRPORT BRIEFING
{{.Airport}}
Generated {{.Time}}

WEATHER
{{.Weather}}
RUNWAYS
{{.Runways}}
RUNWAY NOTAMS
{{.RunwayNotams}}
ACTIVE NOTAMS ({{.NotamCount}})
{{.Notams}}{{if .Summary}}
SUMMARY
{{.Summary}}
{{end}}`

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"join":  strings.Join,
}

// Engine handles template loading, caching, and rendering
type Engine struct {
	templateCache map[string]*template.Template
	cacheMutex    sync.RWMutex
	reload        bool
	logger        *logger.Logger
}

// NewEngine creates a new template engine. With reload set, file templates
// are re-read on every render.
func NewEngine(reload bool, logger *logger.Logger) *Engine {
	return &Engine{
		templateCache: make(map[string]*template.Template),
		reload:        reload,
		logger:        logger.Named("template-engine"),
	}
}

// RenderTemplate renders a template with the given briefing context.
// An empty path selects the built-in briefing template.
func (e *Engine) RenderTemplate(templatePath string, context *TemplateContext, opts FormattingOptions) (string, error) {
	if templatePath == "" {
		templatePath = BuiltinBriefingTemplate
	}
	e.logger.Debug("Rendering template",
		logger.String("template_path", templatePath),
		logger.Bool("include_weather", opts.IncludeWeather),
		logger.Bool("include_runways", opts.IncludeRunways))

	tmpl, err := e.getTemplate(templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to get template: %w", err)
	}

	data := e.prepareTemplateData(context, opts)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	rendered := buf.String()
	e.logger.Debug("Template rendered successfully",
		logger.String("template_path", templatePath),
		logger.Int("rendered_length", len(rendered)))

	return rendered, nil
}

// prepareTemplateData converts raw context data to formatted template data
func (e *Engine) prepareTemplateData(context *TemplateContext, opts FormattingOptions) TemplateData {
	timeFormat := opts.TimeFormat
	if timeFormat == "" {
		timeFormat = DefaultFormattingOptions().TimeFormat
	}

	data := TemplateData{
		Timestamp:      context.Timestamp,
		Time:           context.Timestamp.UTC().Format(timeFormat),
		Airport:        strings.TrimRight(FormatAirportData(context.Airport), "\n"),
		AirportDetails: context.Airport,
		Notams:         FormatNotamGroups(context.NotamsByCategory, opts.MaxNotamsPerCategory),
		RunwayNotams:   FormatNotamList(context.RunwayNotams),
		Summary:        strings.TrimSpace(context.Summary),
	}
	for _, group := range context.NotamsByCategory {
		data.NotamCount += len(group)
	}

	if opts.IncludeWeather {
		data.Weather = FormatWeatherData(context.Weather, context.DensityAltitudeFt, context.Timestamp)
	} else {
		data.Weather = "Weather data not available.\n"
	}

	if opts.IncludeRunways {
		data.Runways = FormatRunwayData(context.Runways)
	} else {
		data.Runways = "Runway information not available.\n"
	}

	return data
}

// getTemplate retrieves a template from cache or loads it from file
func (e *Engine) getTemplate(templatePath string) (*template.Template, error) {
	if e.reload && templatePath != BuiltinBriefingTemplate {
		return e.loadTemplate(templatePath)
	}

	e.cacheMutex.RLock()
	if tmpl, exists := e.templateCache[templatePath]; exists {
		e.cacheMutex.RUnlock()
		return tmpl, nil
	}
	e.cacheMutex.RUnlock()

	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	// Double-check in case another goroutine loaded it while we were waiting
	if tmpl, exists := e.templateCache[templatePath]; exists {
		return tmpl, nil
	}

	tmpl, err := e.loadTemplate(templatePath)
	if err != nil {
		return nil, err
	}

	e.templateCache[templatePath] = tmpl
	e.logger.Debug("Template loaded and cached",
		logger.String("template_path", templatePath))

	return tmpl, nil
}

// loadTemplate parses the built-in template or a template file
func (e *Engine) loadTemplate(templatePath string) (*template.Template, error) {
	content := builtinBriefing
	if templatePath != BuiltinBriefingTemplate {
		raw, err := os.ReadFile(templatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read template file '%s': %w", templatePath, err)
		}
		content = string(raw)
	}

	tmpl, err := template.New(templatePath).Funcs(templateFuncs).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template file '%s': %w", templatePath, err)
	}

	return tmpl, nil
}

// ReloadTemplate forces a template to be reloaded from file
func (e *Engine) ReloadTemplate(templatePath string) error {
	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	tmpl, err := e.loadTemplate(templatePath)
	if err != nil {
		return err
	}

	e.templateCache[templatePath] = tmpl
	e.logger.Info("Template reloaded",
		logger.String("template_path", templatePath))

	return nil
}

// ClearCache clears the template cache
func (e *Engine) ClearCache() {
	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	templateCount := len(e.templateCache)
	e.templateCache = make(map[string]*template.Template)

	e.logger.Info("Template cache cleared",
		logger.Int("cleared_count", templateCount))
}

// GetCacheStats returns statistics about the template cache
func (e *Engine) GetCacheStats() map[string]any {
	e.cacheMutex.RLock()
	defer e.cacheMutex.RUnlock()

	templates := make([]string, 0, len(e.templateCache))
	for path := range e.templateCache {
		templates = append(templates, path)
	}
	sort.Strings(templates)

	return map[string]any{
		"cached_template_count": len(e.templateCache),
		"cached_templates":      templates,
	}
}
