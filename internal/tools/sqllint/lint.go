package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
}

type markerSite struct {
	file string
	name string
	line int
}

// lintTargets walks files and directories and reports missing, malformed and
// duplicated markers.
func lintTargets(targets []string) ([]violation, error) {
	var violations []violation
	seen := make(map[string]markerSite)

	visit := func(path string) error {
		vs, markers, err := lintFile(path)
		if err != nil {
			return err
		}
		violations = append(violations, vs...)
		for _, m := range markers {
			if first, dup := seen[m.marker]; dup {
				violations = append(violations, violation{
					file:    m.site.file,
					line:    m.site.line,
					name:    m.site.name,
					message: fmt.Sprintf("marker already used by %s (%s:%d)", first.name, first.file, first.line),
				})
				continue
			}
			seen[m.marker] = m.site
		}
		return nil
	}

	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if filepath.Ext(target) == ".go" {
				if err := visit(target); err != nil {
					return nil, err
				}
			}
			continue
		}
		err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			return visit(path)
		})
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].file != violations[j].file {
			return violations[i].file < violations[j].file
		}
		return violations[i].line < violations[j].line
	})
	return violations, nil
}

type foundMarker struct {
	marker string
	site   markerSite
}

func lintFile(path string) ([]violation, []foundMarker, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, nil, err
	}
	var (
		violations []violation
		markers    []foundMarker
	)
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for _, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			site := markerSite{file: path, name: joinNames(vs.Names), line: fset.Position(bl.Pos()).Line}
			marker := firstLine(raw)
			if !uuidMarkerPattern.MatchString(marker) {
				violations = append(violations, violation{
					file:    site.file,
					line:    site.line,
					name:    site.name,
					message: "missing or invalid --sql <uuid> marker",
				})
				continue
			}
			markers = append(markers, foundMarker{marker: marker, site: site})
		}
		return true
	})
	return violations, markers, nil
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident == nil {
			continue
		}
		parts = append(parts, ident.Name)
	}
	return strings.Join(parts, ",")
}
