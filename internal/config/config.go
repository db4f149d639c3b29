// Package config reads the properties file that describes one ingestion run.
//
// The file uses dotenv syntax. Every key can be overridden by an environment
// variable of the same name, so the same file can be reused across machines.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"

	"github.com/OFFIS-RIT/mt2n/pkg/export"
	"github.com/OFFIS-RIT/mt2n/pkg/graph"
	"github.com/OFFIS-RIT/mt2n/pkg/loader"
)

const (
	KeySources           = "MT2N_TTL_PATH"
	KeyIdentifiers       = "MT2N_IDENTIFIERS_PATH"
	KeyOutputJSON        = "MT2N_OUTPUT_JSON_PATH"
	KeyOutputCSVNodes    = "MT2N_OUTPUT_CSV_NODE_PATH"
	KeyOutputCSVEdges    = "MT2N_OUTPUT_CSV_EDGE_PATH"
	KeyOutputEntities    = "MT2N_OUTPUT_ENTITY_PATH"
	KeyOutputRelations   = "MT2N_OUTPUT_RELATIONSHIP_PATH"
	KeyOutputSummary     = "MT2N_OUTPUT_SUMMARY_PATH"
	KeyCSVProperties     = "MT2N_CSV_INCLUDE_PROPERTIES"
	KeyOntology          = "MT2N_ONTOLOGY_PATH"
	KeyAccessionProperty = "MT2N_ONTOLOGY_ACCESSION_PROPERTY"
	KeyMaxLineBytes      = "MT2N_MAX_LINE_BYTES"
	KeyDatabaseURL       = "DATABASE_URL"
	KeyAWSRegion         = "AWS_REGION"
	KeyAWSEndpoint       = "AWS_ENDPOINT"
	KeyAWSAccessKey      = "AWS_ACCESS_KEY"
	KeyAWSSecretKey      = "AWS_SECRET_KEY"
)

// S3 holds the object storage settings used for s3:// sources and outputs.
type S3 struct {
	Region    string
	Endpoint  string `validate:"omitempty,url"`
	AccessKey string
	SecretKey string
}

// Config is the validated content of one properties file. Relative paths are
// already resolved against the directory of the file.
type Config struct {
	// Dir is the directory relative source list entries resolve against.
	Dir               string
	SourcesPath       string `validate:"required"`
	IdentifiersPath   string
	OntologyPath      string
	AccessionProperty string `validate:"required"`
	MaxLineBytes      int    `validate:"gte=0"`
	DatabaseURL       string
	Outputs           export.Targets
	S3                S3
}

var fieldKeys = map[string]string{
	"SourcesPath":       KeySources,
	"AccessionProperty": KeyAccessionProperty,
	"MaxLineBytes":      KeyMaxLineBytes,
	"Endpoint":          KeyAWSEndpoint,
}

var validate = validator.New()

type source struct {
	dir    string
	values map[string]string
}

func (s source) get(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(s.values[key])
}

func (s source) path(key string) string {
	p := s.get(key)
	if p == "" || loader.IsS3Path(p) || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.dir, p)
}

func (s source) bool(key string, defaultValue bool) (bool, error) {
	raw := s.get(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &graph.ConfigurationError{Key: key, Reason: fmt.Sprintf("%q is not a boolean", raw)}
	}
	return value, nil
}

func (s source) int(key string) (int, error) {
	raw := s.get(key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &graph.ConfigurationError{Key: key, Reason: fmt.Sprintf("%q is not an integer", raw)}
	}
	return value, nil
}

// Load reads and validates the properties file at path.
func Load(path string) (*Config, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, &graph.ConfigurationError{Key: "config", Reason: err.Error()}
	}
	return build(source{dir: filepath.Dir(path), values: values})
}

// Parse reads properties from r. Relative paths resolve against dir.
func Parse(r io.Reader, dir string) (*Config, error) {
	values, err := godotenv.Parse(r)
	if err != nil {
		return nil, &graph.ConfigurationError{Key: "config", Reason: err.Error()}
	}
	return build(source{dir: dir, values: values})
}

func build(src source) (*Config, error) {
	includeProperties, err := src.bool(KeyCSVProperties, true)
	if err != nil {
		return nil, err
	}
	maxLineBytes, err := src.int(KeyMaxLineBytes)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Dir:               src.dir,
		SourcesPath:       src.path(KeySources),
		IdentifiersPath:   src.path(KeyIdentifiers),
		OntologyPath:      src.path(KeyOntology),
		AccessionProperty: src.get(KeyAccessionProperty),
		MaxLineBytes:      maxLineBytes,
		DatabaseURL:       src.get(KeyDatabaseURL),
		Outputs: export.Targets{
			JSON:              src.path(KeyOutputJSON),
			CSVNodes:          src.path(KeyOutputCSVNodes),
			CSVEdges:          src.path(KeyOutputCSVEdges),
			Entities:          src.path(KeyOutputEntities),
			Relationships:     src.path(KeyOutputRelations),
			Summary:           src.path(KeyOutputSummary),
			IncludeProperties: includeProperties,
		},
		S3: S3{
			Region:    src.get(KeyAWSRegion),
			Endpoint:  src.get(KeyAWSEndpoint),
			AccessKey: src.get(KeyAWSAccessKey),
			SecretKey: src.get(KeyAWSSecretKey),
		},
	}
	if cfg.AccessionProperty == "" {
		cfg.AccessionProperty = graph.DefaultAccessionProperty
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct rules and the cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			key, ok := fieldKeys[fe.Field()]
			if !ok {
				key = fe.Field()
			}
			return &graph.ConfigurationError{Key: key, Reason: fmt.Sprintf("failed %q check", fe.Tag())}
		}
		return &graph.ConfigurationError{Key: "config", Reason: err.Error()}
	}

	if (c.Outputs.CSVNodes == "") != (c.Outputs.CSVEdges == "") {
		return &graph.ConfigurationError{
			Key:    KeyOutputCSVNodes,
			Reason: fmt.Sprintf("must be set together with %s", KeyOutputCSVEdges),
		}
	}
	return nil
}

// NeedsS3 reports whether any source list, input or output lives in S3.
func (c *Config) NeedsS3(sources []string) bool {
	paths := []string{
		c.SourcesPath, c.IdentifiersPath, c.OntologyPath,
		c.Outputs.JSON, c.Outputs.CSVNodes, c.Outputs.CSVEdges,
		c.Outputs.Entities, c.Outputs.Relationships, c.Outputs.Summary,
	}
	for _, p := range append(paths, sources...) {
		if loader.IsS3Path(p) {
			return true
		}
	}
	return false
}

// ReadSourceList reads one source path per line. Blank lines and lines
// starting with '#' are skipped. Relative local paths resolve against dir.
func ReadSourceList(r io.Reader, dir string) ([]string, error) {
	var sources []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !loader.IsS3Path(line) && !filepath.IsAbs(line) {
			line = filepath.Join(dir, line)
		}
		sources = append(sources, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &graph.ConfigurationError{Key: KeySources, Reason: err.Error()}
	}
	if len(sources) == 0 {
		return nil, &graph.ConfigurationError{Key: KeySources, Reason: "no source files listed"}
	}
	return sources, nil
}

// ReadIdentifiers reads "EntityType<TAB>Property" lines into the identifier
// table. Blank lines and '#' comments are skipped. Names may be written as
// IRIs in angle brackets, the way they appear in the triple files.
func ReadIdentifiers(r io.Reader) (map[string]string, error) {
	identifiers := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entityType, prop, ok := strings.Cut(line, "\t")
		entityType, prop = bareName(entityType), bareName(prop)
		if !ok || entityType == "" || prop == "" {
			return nil, &graph.ConfigurationError{
				Key:    KeyIdentifiers,
				Reason: fmt.Sprintf("line %d: expected entity type and property separated by a tab", lineNo),
			}
		}
		if existing, dup := identifiers[entityType]; dup && existing != prop {
			return nil, &graph.ConfigurationError{
				Key:    KeyIdentifiers,
				Reason: fmt.Sprintf("line %d: %s already identified by %q", lineNo, entityType, existing),
			}
		}
		identifiers[entityType] = prop
	}
	if err := scanner.Err(); err != nil {
		return nil, &graph.ConfigurationError{Key: KeyIdentifiers, Reason: err.Error()}
	}
	return identifiers, nil
}

// bareName strips surrounding space and one pair of angle brackets.
func bareName(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '<' && s[len(s)-1] == '>' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
