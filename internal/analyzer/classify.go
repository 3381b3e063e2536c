package analyzer

import (
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/remedy"
)

// exceptionKinds maps Python exception class names onto error kinds. The
// table is consulted after the traceback walk has picked a frame; anything
// missing here degrades to KindLogic for raised exceptions.
var exceptionKinds = map[string]remedy.ErrorKind{
	"SyntaxError":          remedy.KindSyntax,
	"IndentationError":     remedy.KindSyntax,
	"TabError":             remedy.KindSyntax,
	"ImportError":          remedy.KindMissingResource,
	"ModuleNotFoundError":  remedy.KindMissingResource,
	"FileNotFoundError":    remedy.KindMissingResource,
	"TemplateDoesNotExist": remedy.KindMissingResource,
	"TemplateSyntaxError":  remedy.KindSyntax,
	"NoReverseMatch":       remedy.KindRouting,
	"ImproperlyConfigured": remedy.KindConfiguration,
	"AppRegistryNotReady":  remedy.KindConfiguration,
	"OperationalError":     remedy.KindMigration,
	"ProgrammingError":     remedy.KindMigration,
	"PermissionError":      remedy.KindEnvironment,
	"AssertionError":       remedy.KindLogic,
	"AttributeError":       remedy.KindLogic,
	"NameError":            remedy.KindLogic,
	"TypeError":            remedy.KindLogic,
	"ValueError":           remedy.KindLogic,
	"KeyError":             remedy.KindLogic,
	"IndexError":           remedy.KindLogic,
	"ZeroDivisionError":    remedy.KindLogic,
	"RuntimeError":         remedy.KindLogic,
}

// classifyException resolves an exception class name to an error kind. An
// assertion only counts as a test failure when the triggering command was a
// test run; the same exception raised elsewhere is a logic failure.
func classifyException(excName, command string) remedy.ErrorKind {
	kind, ok := exceptionKinds[baseExceptionName(excName)]
	if !ok {
		return remedy.KindLogic
	}
	if kind == remedy.KindLogic && baseExceptionName(excName) == "AssertionError" && isTestCommand(command) {
		return remedy.KindTestFailure
	}
	return kind
}

// baseExceptionName strips a dotted module prefix, e.g.
// "django.urls.exceptions.NoReverseMatch" -> "NoReverseMatch".
func baseExceptionName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// isTestCommand reports whether the invocation runs the test suite.
func isTestCommand(command string) bool {
	if strings.Contains(command, "pytest") {
		return true
	}
	for _, part := range strings.Fields(command) {
		if part == "test" {
			return true
		}
	}
	return false
}
