package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
)

// SourceFile is the source name of YAML handlers.
const SourceFile = "file"

const fileExt = ".yaml"

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

// Document is the on-disk form of a file handler.
type Document struct {
	Name        string   `yaml:"name" json:"name"`
	Title       string   `yaml:"title,omitempty" json:"title,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Example     string   `yaml:"example,omitempty" json:"example,omitempty"`
	Subcommands []string `yaml:"subcommands,omitempty" json:"subcommands,omitempty"`
	OwnerOnly   bool     `yaml:"owner_only,omitempty" json:"ownerOnly"`
	// Reply is a text/template rendered with TemplateData.
	Reply string `yaml:"reply" json:"reply"`
}

// Validate checks the fields needed to build a handler.
func (d *Document) Validate() error {
	d.Name = Key(d.Name)
	if d.Name == "" {
		return domainerrors.NewValidationError("handler name is required", "")
	}
	if !validName.MatchString(d.Name) {
		return domainerrors.NewValidationError("invalid handler name", "use lowercase letters, digits, '-' or '_'")
	}
	if strings.TrimSpace(d.Reply) == "" {
		return domainerrors.NewValidationError("handler reply is required", "")
	}
	if _, err := parseReply(d.Name, d.Reply); err != nil {
		return domainerrors.NewValidationError("invalid reply template", err.Error())
	}
	return nil
}

// TemplateData is passed to reply templates.
type TemplateData struct {
	Command    string
	Args       []string
	ArgText    string
	SenderID   string
	SenderName string
	Identity   string
	Time       time.Time
}

// FileSource loads handlers from <dir>/<name>.yaml and manages those files.
type FileSource struct {
	dir string
	mu  sync.Mutex // serializes writes
}

// NewFileSource creates the handler directory if needed.
func NewFileSource(dir string) (*FileSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("handlers directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create handlers directory: %w", err)
	}
	return &FileSource{dir: dir}, nil
}

// Name implements Source.
func (s *FileSource) Name() string { return SourceFile }

// Dir returns the watched directory.
func (s *FileSource) Dir() string { return s.dir }

// Load implements Source. Unreadable or invalid files are skipped.
func (s *FileSource) Load(ctx context.Context) ([]*Descriptor, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read handlers directory: %w", err)
	}

	var out []*Descriptor
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(s.dir, e.Name())
		doc, _, err := readDocument(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping unreadable handler file")
			continue
		}
		d, err := doc.descriptor()
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping invalid handler file")
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// List returns the names of all handler files, sorted.
func (s *FileSource) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read handlers directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == fileExt {
			names = append(names, strings.TrimSuffix(e.Name(), fileExt))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read returns a handler document and its raw YAML.
func (s *FileSource) Read(name string) (*Document, []byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, nil, err
	}
	doc, raw, err := readDocument(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", domainerrors.ErrHandlerNotFound, name)
	}
	return doc, raw, err
}

// Save writes doc. With isNew an existing file is a conflict; without it a
// missing file is not found.
func (s *FileSource) Save(doc *Document, isNew bool) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	path, err := s.path(doc.Name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(path)
	exists := statErr == nil
	switch {
	case isNew && exists:
		return fmt.Errorf("%w: %s", domainerrors.ErrHandlerExists, doc.Name)
	case !isNew && !exists:
		return fmt.Errorf("%w: %s", domainerrors.ErrHandlerNotFound, doc.Name)
	}

	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode handler: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write handler: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write handler: %w", err)
	}
	return nil
}

// Delete removes a handler file.
func (s *FileSource) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domainerrors.ErrHandlerNotFound, name)
		}
		return fmt.Errorf("failed to delete handler: %w", err)
	}
	return nil
}

func (s *FileSource) path(name string) (string, error) {
	key := Key(name)
	if !validName.MatchString(key) {
		return "", domainerrors.NewValidationError("invalid handler name", name)
	}
	return filepath.Join(s.dir, key+fileExt), nil
}

func readDocument(path string) (*Document, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, raw, fmt.Errorf("failed to parse handler: %w", err)
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), fileExt)
	}
	return &doc, raw, nil
}

func parseReply(name, reply string) (*template.Template, error) {
	return template.New(name).Option("missingkey=zero").Parse(reply)
}

func (d *Document) descriptor() (*Descriptor, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	tmpl, err := parseReply(d.Name, d.Reply)
	if err != nil {
		return nil, err
	}
	return &Descriptor{
		Name:        d.Name,
		Title:       d.Title,
		Description: d.Description,
		Example:     d.Example,
		Subcommands: d.Subcommands,
		OwnerOnly:   d.OwnerOnly,
		Source:      SourceFile,
		Execute: func(ctx context.Context, inv *Invocation) error {
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, TemplateData{
				Command:    inv.Command,
				Args:       inv.Args,
				ArgText:    inv.ArgText(),
				SenderID:   inv.Message.SenderID,
				SenderName: inv.Message.SenderName,
				Identity:   inv.Identity,
				Time:       time.Now(),
			}); err != nil {
				return fmt.Errorf("failed to render reply: %w", err)
			}
			text := strings.TrimSpace(buf.String())
			if text == "" {
				return nil
			}
			return inv.ReplyText(ctx, text)
		},
	}, nil
}
