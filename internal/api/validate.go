package api

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const maxBodyBytes = 4 << 20

var loadSchemas = sync.OnceValues(func() (map[string]*gojsonschema.Schema, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	out := make(map[string]*gojsonschema.Schema, len(entries))
	for _, e := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), ".json")] = s
	}
	return out, nil
})

// validationError 请求体未通过校验，对应 400
type validationError struct {
	problems []string
}

func (e *validationError) Error() string {
	return "invalid request body: " + strings.Join(e.problems, "; ")
}

// validateJSON 按名称校验原始 JSON，返回所有不满足的约束
func validateJSON(name string, raw []byte) error {
	schemas, err := loadSchemas()
	if err != nil {
		return err
	}
	schema, ok := schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &validationError{problems: []string{"body is not valid JSON"}}
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &validationError{problems: problems}
}

// decodeBody 读取请求体，按 schema 校验后解码到 dst
func decodeBody(w http.ResponseWriter, r *http.Request, schema string, dst any) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return &validationError{problems: []string{fmt.Sprintf("body exceeds %d bytes", mbe.Limit)}}
		}
		return &validationError{problems: []string{"failed to read body"}}
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return &validationError{problems: []string{"body is empty"}}
	}
	if err := validateJSON(schema, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &validationError{problems: []string{err.Error()}}
	}
	return nil
}
