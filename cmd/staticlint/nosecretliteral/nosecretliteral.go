// Package nosecretliteral defines an analyzer that reports string literals
// assigned to names containing "secret". Signing secrets come from the
// environment or the config file, never from the source tree.
package nosecretliteral

import (
	"go/ast"
	"go/token"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "nosecretliteral",
	Doc:  "prohibits hardcoded string literals in variables, constants and fields named *secret*",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	for _, file := range pass.Files {
		filename := pass.Fset.File(file.Pos()).Name()
		if isGoBuildCacheFile(filename) || strings.HasSuffix(filename, "_test.go") {
			continue
		}

		ast.Inspect(file, func(n ast.Node) bool {
			switch node := n.(type) {
			case *ast.ValueSpec:
				for i, name := range node.Names {
					if i < len(node.Values) {
						check(pass, name.Name, node.Values[i])
					}
				}

			case *ast.AssignStmt:
				if len(node.Lhs) != len(node.Rhs) {
					return true
				}
				for i, lhs := range node.Lhs {
					check(pass, targetName(lhs), node.Rhs[i])
				}

			case *ast.KeyValueExpr:
				if key, ok := node.Key.(*ast.Ident); ok {
					check(pass, key.Name, node.Value)
				}
			}
			return true
		})
	}
	return nil, nil
}

func check(pass *analysis.Pass, name string, value ast.Expr) {
	if !strings.Contains(strings.ToLower(name), "secret") {
		return
	}

	literal, ok := value.(*ast.BasicLit)
	if !ok || literal.Kind != token.STRING || literal.Value == `""` || literal.Value == "``" {
		return
	}

	pass.Reportf(literal.Pos(), "hardcoded secret in %s: load it from the configuration instead", name)
}

func targetName(expr ast.Expr) string {
	switch target := expr.(type) {
	case *ast.Ident:
		return target.Name
	case *ast.SelectorExpr:
		return target.Sel.Name
	}
	return ""
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/") || strings.Contains(path, `\go-build\`)
}
