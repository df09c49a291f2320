package consoleviewer

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
)

func getCommandLineExecutable() string {
	return filepath.Base(os.Args[0])
}

func getDefaultOptionString(envName string, defaultValue string) string {
	envValue := os.Getenv(envName)
	if envValue != "" {
		return envValue
	}
	return defaultValue
}

func FatalErrorHandler(cmd *cobra.Command, msg string, code int) {
	if len(msg) > 0 {
		// add newline if needed
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
		cmd.Print(msg)
	}
	os.Exit(code)
}

// generateEnvHelpText lists the envconfig variables of cfg, recursing into
// nested structs. Variables already listed under prefix are skipped.
func generateEnvHelpText(cfg interface{}, prefix string) string {
	return envHelpText(reflect.TypeOf(cfg), prefix, map[string]bool{})
}

func envHelpText(t reflect.Type, prefix string, seen map[string]bool) string {
	var helpTextBuilder strings.Builder

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			helpTextBuilder.WriteString(fmt.Sprintf("\n%s - %s\n\n", prefix, field.Name))
			helpTextBuilder.WriteString(envHelpText(field.Type, prefix+" ", seen))
			continue
		}

		envVar := field.Tag.Get("envconfig")
		if envVar == "" || seen[envVar] {
			continue
		}
		seen[envVar] = true

		description := field.Tag.Get("description")
		defaultValue := field.Tag.Get("default")
		helpTextBuilder.WriteString(fmt.Sprintf("%s  %s: %s (default: \"%s\")\n", prefix, envVar, description, defaultValue))
	}

	return helpTextBuilder.String()
}
