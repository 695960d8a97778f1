package templates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlTemplate is the catalog file shape:
//
//	reservation_reminder:
//	  name: Reservation reminder
//	  variants:
//	    en:
//	      subject: "Reminder: {{reservation.date}}"
//	      body: "..."
//	    ja:
//	      subject: "..."
//	      body: "..."
//	      active: false
type yamlTemplate struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Variants    map[string]yamlVariant `yaml:"variants"`
}

type yamlVariant struct {
	Subject  string `yaml:"subject"`
	Body     string `yaml:"body"`
	TextBody string `yaml:"text_body"`
	Active   *bool  `yaml:"active"`
}

// ParseYAML decodes a template catalog. Variants are active unless marked
// otherwise.
func ParseYAML(r io.Reader) ([]Template, error) {
	var doc map[string]yamlTemplate
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Join(ErrFailedToParseYAML, err)
	}

	out := make([]Template, 0, len(doc))
	for id, yt := range doc {
		t := Template{ID: id, Name: yt.Name, Description: yt.Description}
		for locale, yv := range yt.Variants {
			active := yv.Active == nil || *yv.Active
			t.Variants = append(t.Variants, Variant{
				Locale:   locale,
				Subject:  yv.Subject,
				Body:     yv.Body,
				TextBody: yv.TextBody,
				Active:   active,
			})
		}
		out = append(out, t)
	}
	return out, nil
}

// LoadYAML reads a catalog into s.
func (s *MemoryStore) LoadYAML(ctx context.Context, r io.Reader) error {
	list, err := ParseYAML(r)
	if err != nil {
		return err
	}
	for _, t := range list {
		if err := s.Save(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// LoadYAMLFile reads a catalog file into s.
func (s *MemoryStore) LoadYAMLFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open template catalog: %w", err)
	}
	defer f.Close()
	return s.LoadYAML(ctx, f)
}
