// Package noexit содержит анализатор, который запрещает прямое завершение процесса
// из функции main: os.Exit и syscall.Exit обходят отложенные вызовы (например, logger.Sync).
package noexit

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
)

// Analyzer запрещает os.Exit и syscall.Exit в функции main пакета main.
var Analyzer = &analysis.Analyzer{
	Name: "noexit",
	Doc:  "запрещает os.Exit и syscall.Exit в функции main пакета main",
	Run:  run,
}

var forbidden = map[string]bool{
	"os.Exit":      true,
	"syscall.Exit": true,
}

// NewAnalyzer возвращает анализатор noexit.
func NewAnalyzer() *analysis.Analyzer {
	return Analyzer
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}

	for _, file := range pass.Files {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Name.Name != "main" || fn.Recv != nil || fn.Body == nil {
				continue
			}

			ast.Inspect(fn.Body, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				sel, ok := call.Fun.(*ast.SelectorExpr)
				if !ok {
					return true
				}
				// сверяем по объекту, а не по имени: так ловятся и переименованные импорты
				if obj, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func); ok && forbidden[obj.FullName()] {
					pass.Reportf(call.Pos(), "вызов %s в функции main запрещён", obj.FullName())
				}
				return true
			})
		}
	}
	return nil, nil
}
