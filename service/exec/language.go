package exec

// runtime describes how a language is executed.
type runtime struct {
	name        string
	interpreter string // shell command the script file is passed to
	extension   string
}

var (
	pythonRuntime = &runtime{name: "python", interpreter: "python3", extension: ".py"}
	shellRuntime  = &runtime{name: "shell", interpreter: "sh", extension: ".sh"}
	goRuntime     = &runtime{name: "go", interpreter: "go run", extension: ".go"}
)

var runtimes = map[string]*runtime{
	"python":  pythonRuntime,
	"python3": pythonRuntime,
	"py":      pythonRuntime,
	"sh":      shellRuntime,
	"bash":    shellRuntime,
	"shell":   shellRuntime,
	"console": shellRuntime,
	"go":      goRuntime,
	"golang":  goRuntime,
}

func lookupRuntime(language string) (*runtime, bool) {
	r, ok := runtimes[language]
	return r, ok
}

// Supported reports whether snippets in language can be executed.
func Supported(language string) bool {
	_, ok := lookupRuntime(normalize(language))
	return ok
}
