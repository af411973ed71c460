package exec

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// interpretedPackages are the only imports available to interpreted
// snippets. None of them can open, create or remove files, so a snippet
// cannot escape its working directory.
var interpretedPackages = map[string]bool{
	"bytes":           true,
	"container/heap":  true,
	"container/list":  true,
	"encoding/base64": true,
	"encoding/hex":    true,
	"encoding/json":   true,
	"errors":          true,
	"fmt":             true,
	"math":            true,
	"math/big":        true,
	"math/bits":       true,
	"math/rand":       true,
	"regexp":          true,
	"sort":            true,
	"strconv":         true,
	"strings":         true,
	"time":            true,
	"unicode":         true,
	"unicode/utf8":    true,
}

// interpretedSymbols filters stdlib symbols, keyed "import/path/name", down
// to interpretedPackages. The "." entry carries interface wrappers.
func interpretedSymbols() interp.Exports {
	ret := interp.Exports{}
	for key, symbols := range stdlib.Symbols {
		if key == "." {
			ret[key] = symbols
			continue
		}
		idx := strings.LastIndex(key, "/")
		if idx <= 0 || !interpretedPackages[key[:idx]] {
			continue
		}
		ret[key] = symbols
	}
	return ret
}

func allowedImports() string {
	names := make([]string, 0, len(interpretedPackages))
	for name := range interpretedPackages {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// interpret evaluates a Go snippet in-process when no go toolchain is
// available. Imports outside interpretedPackages fail the snippet.
func (s *Service) interpret(ctx context.Context, input *Input, output *Output) (err error) {
	var stdout, stderr bytes.Buffer
	i := interp.New(interp.Options{Stdout: &stdout, Stderr: &stderr})
	if err = i.Use(interpretedSymbols()); err != nil {
		return fmt.Errorf("failed to load go symbols: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			output.Status = 1
			output.Stderr = strings.TrimSpace(stderr.String() + "\n" + fmt.Sprint(r))
			err = nil
		}
		output.Stdout = strings.TrimSpace(stdout.String())
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, durationMs(input.TimeoutMs))
	defer cancel()
	if _, evalErr := i.EvalWithContext(timeoutCtx, input.Code); evalErr != nil {
		message := evalErr.Error()
		if strings.Contains(message, "unable to find source related to") {
			message += "\nwithout a go toolchain snippets may only import: " + allowedImports()
		}
		output.Status = 1
		output.Stderr = strings.TrimSpace(strings.TrimSpace(stderr.String()) + "\n" + message)
		return nil
	}
	output.Stderr = strings.TrimSpace(stderr.String())
	return nil
}
