// Command staticlint is the shop multichecker.
//
// Usage:
//
//	go build -o staticlint ./cmd/staticlint && ./staticlint ./...
//
// Staticcheck analyzers are opt-in: config.json next to the binary lists
// their names. Without the file the defaultStaticcheck set is used.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"honnef.co/go/tools/staticcheck"

	"github.com/patric-chuzhbe/shop/cmd/staticlint/nosecretliteral"
)

const configFileName = `config.json`

// Deprecated APIs, overwritten values, nil dereferences and empty branches.
var defaultStaticcheck = []string{"SA1019", "SA4006", "SA5011", "SA9003"}

type lintConfig struct {
	Staticcheck []string
}

func loadConfig() (lintConfig, error) {
	cfg := lintConfig{Staticcheck: defaultStaticcheck}

	executable, err := os.Executable()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(executable), configFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("in cmd/staticlint/main.go/loadConfig(): error while `json.Unmarshal()` calling: %w", err)
	}
	return cfg, nil
}

func analyzers(cfg lintConfig) []*analysis.Analyzer {
	checks := []*analysis.Analyzer{
		copylock.Analyzer,
		httpresponse.Analyzer,
		lostcancel.Analyzer,
		printf.Analyzer,
		structtag.Analyzer,
		unmarshal.Analyzer,

		ineffassign.Analyzer,
		nilerr.Analyzer,

		nosecretliteral.Analyzer,
	}

	enabled := make(map[string]bool, len(cfg.Staticcheck))
	for _, name := range cfg.Staticcheck {
		enabled[name] = true
	}
	for _, v := range staticcheck.Analyzers {
		if enabled[v.Analyzer.Name] {
			checks = append(checks, v.Analyzer)
		}
	}

	return checks
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	multichecker.Main(analyzers(cfg)...)
}
