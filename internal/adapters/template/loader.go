package template

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/drover-io/drover/internal/domain"
)

type libraryDoc struct {
	Blocks         []*domain.SpecBlock     `yaml:"blocks"`
	Specifications []*domain.Specification `yaml:"specifications"`
}

// LoadLibrary reads every .yaml/.yml document under dir into one spec
// library. Block and specification names must be unique across the document
// set; collisions are configuration errors, not silent overrides.
func LoadLibrary(dir string) (*domain.SpecLibrary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.WrapConfigError("reading spec directory "+dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	library := &domain.SpecLibrary{
		Specifications: make(map[string]*domain.Specification),
		Blocks:         make(map[string]*domain.SpecBlock),
	}
	for _, path := range paths {
		if err := loadFile(path, library); err != nil {
			return nil, err
		}
	}
	return library, nil
}

func loadFile(path string, library *domain.SpecLibrary) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.WrapConfigError("reading "+path, err)
	}

	var doc libraryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.WrapConfigError("parsing "+path, err)
	}

	for _, block := range doc.Blocks {
		if block.Name == "" {
			return domain.NewConfigError(path + ": block without a name")
		}
		if _, exists := library.Blocks[block.Name]; exists {
			return domain.NewConfigError(path + ": duplicate spec block " + block.Name)
		}
		library.Blocks[block.Name] = block
	}
	for _, spec := range doc.Specifications {
		if spec.Name == "" {
			return domain.NewConfigError(path + ": specification without a name")
		}
		if _, exists := library.Specifications[spec.Name]; exists {
			return domain.NewConfigError(path + ": duplicate specification " + spec.Name)
		}
		library.Specifications[spec.Name] = spec
	}
	return nil
}

// ParseSubmission parses an operator-supplied campaign submission document.
func ParseSubmission(data []byte) (*domain.SubmissionDoc, error) {
	var doc domain.SubmissionDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, domain.WrapConfigError("parsing submission document", err)
	}
	if doc.Campaign == "" {
		return nil, domain.NewConfigError("submission requires a campaign name")
	}
	if doc.Specification == "" {
		return nil, domain.NewConfigError("submission requires a specification name")
	}
	if err := domain.ValidateName(doc.Campaign); err != nil {
		return nil, err
	}
	return &doc, nil
}
