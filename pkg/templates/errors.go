package templates

import "errors"

var (
	ErrTemplateNotFound  = errors.New("templates: template not found")
	ErrVariantNotFound   = errors.New("templates: no active variant for locale")
	ErrInvalidLocale     = errors.New("templates: invalid locale")
	ErrInvalidTemplate   = errors.New("templates: invalid template")
	ErrFailedToParseYAML = errors.New("templates: failed to parse YAML catalog")
)
