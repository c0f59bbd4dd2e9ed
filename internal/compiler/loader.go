package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/mapping"
)

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// CompileFile compiles one mapping file.
func CompileFile(path string, computes Computes, defaultRoot string) ([]mapping.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read mapping file %s", path)
	}
	return CompileSource(path, data, computes, defaultRoot)
}

// CompileSource compiles mapping declarations from source bytes. filename
// is only used for positions in errors.
func CompileSource(filename string, src []byte, computes Computes, defaultRoot string) ([]mapping.Spec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return CompileMappings(v, computes, defaultRoot)
}

// LoadDir compiles every .cue file under dir. Files are compiled
// independently and their specs concatenated in file order.
func LoadDir(dir string, computes Computes, defaultRoot string) ([]mapping.Spec, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "mappings directory %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.NewInvalidRequestError("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", dir)
	}
	if len(files) == 0 {
		return nil, errors.NewInvalidRequestError("no CUE files found in %s", dir)
	}

	var specs []mapping.Spec
	for _, file := range files {
		fileSpecs, err := CompileFile(file, computes, defaultRoot)
		if err != nil {
			return nil, err
		}
		specs = append(specs, fileSpecs...)
	}
	return specs, nil
}

// RegisterAll registers specs into reg, naming the failing spec on error.
func RegisterAll(reg *mapping.Registry, specs []mapping.Spec) error {
	for _, spec := range specs {
		if err := reg.Register(spec); err != nil {
			return errors.Wrapf(err, "register %s", describe(spec))
		}
	}
	return nil
}

func describe(spec mapping.Spec) string {
	return fmt.Sprintf("%s/%s", spec.Domain, spec.Kind)
}
